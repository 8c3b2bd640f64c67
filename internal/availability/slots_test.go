package availability

import (
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/coachbridge/coachcal/internal/model"
)

// Понедельник 2025-03-03.
var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func mondaySchedule(overrides []model.DateOverride) *model.CoachingSchedule {
	return &model.CoachingSchedule{
		Name:     "Weekday mornings",
		TimeZone: "UTC",
		Availability: datatypes.NewJSONType([]model.WeeklySlot{
			{Days: []string{"Monday"}, StartTime: "09:00", EndTime: "17:00"},
		}),
		Overrides:           datatypes.NewJSONType(overrides),
		DefaultDuration:     60,
		MinimumDuration:     30,
		MaximumDuration:     120,
		AllowCustomDuration: true,
	}
}

// Спецслучай из спецификации поведения: Пн 09:00–17:00, без исключений
// и busy-интервалов, 60 минут, без буферов — ровно 8 слотов 09:00..16:00.
func TestComputeSlots_PlainMonday(t *testing.T) {
	now := monday.Add(-24 * time.Hour)
	days, err := ComputeSlots(mondaySchedule(nil), nil, monday, monday, 60, now)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("days = %d, want 1", len(days))
	}
	if days[0].Date != "2025-03-03" {
		t.Errorf("date = %s", days[0].Date)
	}
	if len(days[0].Slots) != 8 {
		t.Fatalf("slots = %d, want 8", len(days[0].Slots))
	}
	for i, slot := range days[0].Slots {
		wantStart := monday.Add(time.Duration(9+i) * time.Hour)
		if !slot.Start.Equal(wantStart) {
			t.Errorf("slot[%d].Start = %v, want %v", i, slot.Start, wantStart)
		}
		if slot.End.Sub(slot.Start) != time.Hour {
			t.Errorf("slot[%d] duration = %v", i, slot.End.Sub(slot.Start))
		}
	}
}

func TestComputeSlots_BusyIntervalRemovesSlot(t *testing.T) {
	now := monday.Add(-24 * time.Hour)
	busy := []TimeRange{{
		Start: monday.Add(12 * time.Hour),
		End:   monday.Add(13 * time.Hour),
	}}

	days, err := ComputeSlots(mondaySchedule(nil), busy, monday, monday, 60, now)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	slots := days[0].Slots
	if len(slots) != 7 {
		t.Fatalf("slots = %d, want 7", len(slots))
	}
	for _, slot := range slots {
		if slot.Start.Hour() == 12 {
			t.Errorf("12:00 slot must be removed by busy interval")
		}
	}
}

func TestComputeSlots_OverlappingBusyIntervalsMergedBeforeSubtraction(t *testing.T) {
	now := monday.Add(-24 * time.Hour)
	busy := []TimeRange{
		{Start: monday.Add(12 * time.Hour), End: monday.Add(13 * time.Hour)},
		{Start: monday.Add(12*time.Hour + 30*time.Minute), End: monday.Add(14 * time.Hour)},
	}

	days, err := ComputeSlots(mondaySchedule(nil), busy, monday, monday, 60, now)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	// 09..11 и 14..16 остаются: 6 слотов.
	if len(days[0].Slots) != 6 {
		t.Fatalf("slots = %d, want 6: %v", len(days[0].Slots), days[0].Slots)
	}
}

func TestComputeSlots_UnavailableOverrideWinsOverWeeklyRule(t *testing.T) {
	now := monday.Add(-24 * time.Hour)
	schedule := mondaySchedule([]model.DateOverride{
		{Date: "2025-03-03", Unavailable: true},
	})

	days, err := ComputeSlots(schedule, nil, monday, monday, 60, now)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(days) != 0 {
		t.Fatalf("expected no slots for fully overridden date, got %v", days)
	}
}

func TestComputeSlots_OverrideWindowsReplaceWeeklyRule(t *testing.T) {
	now := monday.Add(-24 * time.Hour)
	schedule := mondaySchedule([]model.DateOverride{
		{Date: "2025-03-03", Windows: []model.TimeWindow{{StartTime: "10:00", EndTime: "12:00"}}},
	})

	days, err := ComputeSlots(schedule, nil, monday, monday, 60, now)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	slots := days[0].Slots
	if len(slots) != 2 {
		t.Fatalf("slots = %d, want 2 (10:00, 11:00)", len(slots))
	}
	if slots[0].Start.Hour() != 10 || slots[1].Start.Hour() != 11 {
		t.Errorf("unexpected slots: %v", slots)
	}
}

func TestComputeSlots_BuffersShrinkWindows(t *testing.T) {
	now := monday.Add(-24 * time.Hour)
	schedule := mondaySchedule(nil)
	schedule.BufferBefore = 30
	schedule.BufferAfter = 30

	days, err := ComputeSlots(schedule, nil, monday, monday, 60, now)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	slots := days[0].Slots
	// Окно 09:30–16:30 — семь часовых слотов.
	if len(slots) != 7 {
		t.Fatalf("slots = %d, want 7", len(slots))
	}
	if slots[0].Start.Hour() != 9 || slots[0].Start.Minute() != 30 {
		t.Errorf("first slot = %v, want 09:30", slots[0].Start)
	}
}

func TestComputeSlots_MinimumNoticeFiltersEarlySlots(t *testing.T) {
	schedule := mondaySchedule(nil)
	schedule.MinimumNotice = 120

	// "Сейчас" — полдень понедельника: со 120-минутным notice
	// первый допустимый слот начинается в 14:00.
	now := monday.Add(12 * time.Hour)
	days, err := ComputeSlots(schedule, nil, monday, monday, 60, now)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	slots := days[0].Slots
	if len(slots) != 3 {
		t.Fatalf("slots = %d, want 3 (14:00..16:00)", len(slots))
	}
	if slots[0].Start.Hour() != 14 {
		t.Errorf("first slot = %v, want 14:00", slots[0].Start)
	}
}

func TestComputeSlots_DurationPolicy(t *testing.T) {
	now := monday.Add(-24 * time.Hour)

	schedule := mondaySchedule(nil)
	if _, err := ComputeSlots(schedule, nil, monday, monday, 15, now); !errors.Is(err, ErrDurationOutOfRange) {
		t.Errorf("duration below minimum: err = %v, want ErrDurationOutOfRange", err)
	}
	if _, err := ComputeSlots(schedule, nil, monday, monday, 180, now); !errors.Is(err, ErrDurationOutOfRange) {
		t.Errorf("duration above maximum: err = %v, want ErrDurationOutOfRange", err)
	}

	schedule.AllowCustomDuration = false
	if _, err := ComputeSlots(schedule, nil, monday, monday, 90, now); !errors.Is(err, ErrDurationOutOfRange) {
		t.Errorf("custom duration disabled: err = %v, want ErrDurationOutOfRange", err)
	}
	// Нулевая длительность означает дефолтную.
	if _, err := ComputeSlots(schedule, nil, monday, monday, 0, now); err != nil {
		t.Errorf("zero duration must fall back to default: %v", err)
	}
}

func TestComputeSlots_TimeZoneWindows(t *testing.T) {
	schedule := mondaySchedule(nil)
	schedule.TimeZone = "America/New_York"

	// Диапазон в UTC накрывает понедельник по нью-йоркскому календарю.
	now := monday.Add(-24 * time.Hour)
	days, err := ComputeSlots(schedule, nil, monday, monday.Add(24*time.Hour), 60, now)
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(days) == 0 {
		t.Fatalf("expected slots for the New York Monday")
	}
	ny, _ := time.LoadLocation("America/New_York")
	wantFirst := time.Date(2025, 3, 3, 9, 0, 0, 0, ny)
	if !days[0].Slots[0].Start.Equal(wantFirst) {
		t.Errorf("first slot = %v, want %v", days[0].Slots[0].Start, wantFirst)
	}
}
