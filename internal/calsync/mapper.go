package calsync

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/coachbridge/coachcal/internal/model"
	"github.com/coachbridge/coachcal/internal/provider"
)

// Маппер реализует раздельное владение полями: провайдер авторитетен для
// планировочных полей (имя, таймзона, окна, исключения, дефолтность),
// внутренняя система — для коммерческой политики (длительности, буферы).
// Синхронизация в любую сторону не трогает чужие поля.

// ToInternal переносит внешнее расписание во внутреннюю запись.
// existing != nil — обновление: внутренние поля existing сохраняются,
// перезаписываются только поля, которыми владеет провайдер.
func ToInternal(ext *provider.Schedule, coachID uuid.UUID, existing *model.CoachingSchedule) *model.CoachingSchedule {
	var out model.CoachingSchedule
	if existing != nil {
		out = *existing
	} else {
		out.ID = uuid.New()
		out.CoachID = coachID
		out.DefaultDuration = 60
		out.MinimumDuration = 30
		out.MaximumDuration = 120
		out.Active = true
	}

	extID := ext.ID
	out.ExternalID = &extID
	out.Name = ext.Name
	out.TimeZone = ext.TimeZone
	out.IsDefault = ext.IsDefault

	slots := make([]model.WeeklySlot, 0, len(ext.Availability))
	for _, a := range ext.Availability {
		slots = append(slots, model.WeeklySlot{
			Days:      append([]string(nil), a.Days...),
			StartTime: a.StartTime,
			EndTime:   a.EndTime,
		})
	}
	out.Availability = datatypes.NewJSONType(slots)
	out.Overrides = datatypes.NewJSONType(overridesToInternal(ext.Overrides))

	return &out
}

// ToExternalPayload собирает полезную нагрузку для записи расписания
// провайдеру. Уходят только поля, которыми провайдер владеет.
func ToExternalPayload(s *model.CoachingSchedule) *provider.Schedule {
	out := &provider.Schedule{
		Name:      s.Name,
		TimeZone:  s.TimeZone,
		IsDefault: s.IsDefault,
	}
	if s.ExternalID != nil {
		out.ID = *s.ExternalID
	}

	for _, slot := range s.WeeklySlots() {
		out.Availability = append(out.Availability, provider.ScheduleAvailability{
			Days:      append([]string(nil), slot.Days...),
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
		})
	}

	for _, ov := range s.DateOverrides() {
		if ov.Unavailable || len(ov.Windows) == 0 {
			out.Overrides = append(out.Overrides, provider.ScheduleOverride{Date: ov.Date})
			continue
		}
		for _, w := range ov.Windows {
			out.Overrides = append(out.Overrides, provider.ScheduleOverride{
				Date:      ov.Date,
				StartTime: w.StartTime,
				EndTime:   w.EndTime,
			})
		}
	}

	return out
}

// HasChanges сравнивает планировочные поля без учёта порядка окон и
// исключений. Это затвор от лишних внешних записей и холостого
// обновления lastSyncedAt.
func HasChanges(internal *model.CoachingSchedule, ext *provider.Schedule) bool {
	if internal.Name != ext.Name ||
		internal.TimeZone != ext.TimeZone ||
		internal.IsDefault != ext.IsDefault {
		return true
	}

	if !sameStringSets(weeklyKeys(internal.WeeklySlots()), availabilityKeys(ext.Availability)) {
		return true
	}

	return !sameStringSets(
		overrideKeysInternal(internal.DateOverrides()),
		overrideKeysExternal(ext.Overrides),
	)
}

// Провайдер кодирует одно исключение одной строкой на окно;
// пустые времена означают полностью закрытую дату.
func overridesToInternal(wire []provider.ScheduleOverride) []model.DateOverride {
	byDate := make(map[string]*model.DateOverride)
	var order []string

	for _, w := range wire {
		ov, ok := byDate[w.Date]
		if !ok {
			ov = &model.DateOverride{Date: w.Date}
			byDate[w.Date] = ov
			order = append(order, w.Date)
		}
		if w.StartTime == "" && w.EndTime == "" {
			ov.Unavailable = true
			ov.Windows = nil
			continue
		}
		if !ov.Unavailable {
			ov.Windows = append(ov.Windows, model.TimeWindow{StartTime: w.StartTime, EndTime: w.EndTime})
		}
	}

	out := make([]model.DateOverride, 0, len(order))
	for _, date := range order {
		out = append(out, *byDate[date])
	}
	return out
}

func weeklyKeys(slots []model.WeeklySlot) []string {
	keys := make([]string, 0, len(slots))
	for _, s := range slots {
		keys = append(keys, slotKey(s.Days, s.StartTime, s.EndTime))
	}
	return keys
}

func availabilityKeys(slots []provider.ScheduleAvailability) []string {
	keys := make([]string, 0, len(slots))
	for _, s := range slots {
		keys = append(keys, slotKey(s.Days, s.StartTime, s.EndTime))
	}
	return keys
}

func slotKey(days []string, start, end string) string {
	norm := make([]string, 0, len(days))
	for _, d := range days {
		norm = append(norm, strings.ToLower(d))
	}
	sort.Strings(norm)
	return strings.Join(norm, ",") + "|" + start + "-" + end
}

func overrideKeysInternal(overrides []model.DateOverride) []string {
	var keys []string
	for _, ov := range overrides {
		if ov.Unavailable || len(ov.Windows) == 0 {
			keys = append(keys, ov.Date+"|off")
			continue
		}
		for _, w := range ov.Windows {
			keys = append(keys, ov.Date+"|"+w.StartTime+"-"+w.EndTime)
		}
	}
	return keys
}

func overrideKeysExternal(overrides []provider.ScheduleOverride) []string {
	var keys []string
	for _, ov := range overrides {
		if ov.StartTime == "" && ov.EndTime == "" {
			keys = append(keys, ov.Date+"|off")
			continue
		}
		keys = append(keys, ov.Date+"|"+ov.StartTime+"-"+ov.EndTime)
	}
	return keys
}

func sameStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
