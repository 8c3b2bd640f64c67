package availability

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrSlotDuration     = errors.New("slot duration must be positive")
)

// TimeRange представляет временной интервал [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NormalizeRange нормализует интервал:
//   - меняет местами границы, если они перепутаны;
//   - переводит в заданный часовой пояс loc;
//   - при превышении maxSpan обрезает интервал до start+maxSpan.
//
// Если maxSpan <= 0, ограничение не применяется.
func NormalizeRange(start, end time.Time, loc *time.Location, maxSpan time.Duration) (TimeRange, error) {
	if start.IsZero() || end.IsZero() {
		return TimeRange{}, ErrInvalidTimeRange
	}

	if end.Before(start) {
		start, end = end, start
	}

	if loc != nil {
		start = start.In(loc)
		end = end.In(loc)
	}

	if maxSpan > 0 && end.Sub(start) > maxSpan {
		end = start.Add(maxSpan)
	}

	if !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}

	return TimeRange{Start: start, End: end}, nil
}

func rangesOverlap(a, b TimeRange) bool {
	// Полуоткрытые интервалы [Start, End)
	// пересекаются, если a.Start < b.End && b.Start < a.End
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// MergeIntervals сортирует интервалы и склеивает пересекающиеся и смежные.
// Обязательный шаг перед вычитанием: иначе перекрывающиеся busy-интервалы
// учитываются дважды.
func MergeIntervals(in []TimeRange) []TimeRange {
	if len(in) <= 1 {
		return append([]TimeRange(nil), in...)
	}

	sorted := append([]TimeRange(nil), in...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []TimeRange{sorted[0]}
	for _, tr := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !tr.Start.After(last.End) {
			if tr.End.After(last.End) {
				last.End = tr.End
			}
			continue
		}
		merged = append(merged, tr)
	}
	return merged
}

// SubtractIntervals вычитает busy из window и возвращает свободные куски.
// busy должен быть предварительно склеен через MergeIntervals.
// Busy-интервал, накрывающий окно целиком, убирает его без остатка.
func SubtractIntervals(window TimeRange, busy []TimeRange) []TimeRange {
	free := []TimeRange{window}

	for _, b := range busy {
		var next []TimeRange
		for _, f := range free {
			if !rangesOverlap(f, b) {
				next = append(next, f)
				continue
			}
			if b.Start.After(f.Start) {
				next = append(next, TimeRange{Start: f.Start, End: b.Start})
			}
			if b.End.Before(f.End) {
				next = append(next, TimeRange{Start: b.End, End: f.End})
			}
		}
		free = next
		if len(free) == 0 {
			break
		}
	}

	return free
}

// Shrink поджимает интервал на before с начала и after с конца.
// Возвращает false, если после буферов ничего не осталось.
func Shrink(tr TimeRange, before, after time.Duration) (TimeRange, bool) {
	out := TimeRange{Start: tr.Start.Add(before), End: tr.End.Add(-after)}
	if !out.End.After(out.Start) {
		return TimeRange{}, false
	}
	return out, true
}

// SplitToTimeSlots разбивает интервал на слоты длительностью slotDuration
// с шагом step (step >= slotDuration не требуется: допускается перекрытие
// кандидатов при мелком шаге). "Хвост" короче slotDuration отбрасывается.
func SplitToTimeSlots(tr TimeRange, slotDuration, step time.Duration) ([]TimeRange, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}
	if step <= 0 {
		step = slotDuration
	}
	if !tr.End.After(tr.Start) {
		return []TimeRange{}, nil
	}

	var slots []TimeRange
	for cur := tr.Start; !cur.Add(slotDuration).After(tr.End); cur = cur.Add(step) {
		slots = append(slots, TimeRange{Start: cur, End: cur.Add(slotDuration)})
	}
	return slots, nil
}
