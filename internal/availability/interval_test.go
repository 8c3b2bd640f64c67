package availability

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func equalTimeRange(a, b TimeRange) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

func equalTimeRangeSlices(a, b []TimeRange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalTimeRange(a[i], b[i]) {
			return false
		}
	}
	return true
}

//
// Тесты для NormalizeRange
//

func TestNormalizeRange_SwappedBounds(t *testing.T) {
	start := mustTime(t, 2025, 1, 1, 12, 0)
	end := mustTime(t, 2025, 1, 1, 10, 0)

	tr, err := NormalizeRange(start, end, time.UTC, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !tr.Start.Equal(end) || !tr.End.Equal(start) {
		t.Fatalf("expected Start=%v End=%v, got %v", end, start, tr)
	}
}

func TestNormalizeRange_MaxSpan(t *testing.T) {
	start := mustTime(t, 2025, 1, 1, 10, 0)
	end := mustTime(t, 2025, 2, 15, 10, 0)
	maxSpan := 31 * 24 * time.Hour

	tr, err := NormalizeRange(start, end, time.UTC, maxSpan)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := tr.End.Sub(tr.Start); got != maxSpan {
		t.Fatalf("expected span %v, got %v", maxSpan, got)
	}
}

func TestNormalizeRange_InvalidZero(t *testing.T) {
	if _, err := NormalizeRange(time.Time{}, time.Time{}, time.UTC, 0); err == nil {
		t.Fatalf("expected error for zero times, got nil")
	}
}

//
// Тесты для MergeIntervals
//

func TestMergeIntervals_OverlappingAndAdjacent(t *testing.T) {
	in := []TimeRange{
		{mustTime(t, 2025, 3, 3, 12, 0), mustTime(t, 2025, 3, 3, 13, 0)},
		{mustTime(t, 2025, 3, 3, 9, 0), mustTime(t, 2025, 3, 3, 10, 0)},
		{mustTime(t, 2025, 3, 3, 12, 30), mustTime(t, 2025, 3, 3, 14, 0)},
		{mustTime(t, 2025, 3, 3, 10, 0), mustTime(t, 2025, 3, 3, 11, 0)},
	}

	got := MergeIntervals(in)
	want := []TimeRange{
		{mustTime(t, 2025, 3, 3, 9, 0), mustTime(t, 2025, 3, 3, 11, 0)},
		{mustTime(t, 2025, 3, 3, 12, 0), mustTime(t, 2025, 3, 3, 14, 0)},
	}
	if !equalTimeRangeSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeIntervals_DoesNotMutateInput(t *testing.T) {
	in := []TimeRange{
		{mustTime(t, 2025, 3, 3, 12, 0), mustTime(t, 2025, 3, 3, 13, 0)},
		{mustTime(t, 2025, 3, 3, 9, 0), mustTime(t, 2025, 3, 3, 10, 0)},
	}
	MergeIntervals(in)
	if !in[0].Start.Equal(mustTime(t, 2025, 3, 3, 12, 0)) {
		t.Fatalf("input mutated: %v", in)
	}
}

//
// Тесты для SubtractIntervals
//

func TestSubtractIntervals_MiddleHole(t *testing.T) {
	window := TimeRange{mustTime(t, 2025, 3, 3, 9, 0), mustTime(t, 2025, 3, 3, 17, 0)}
	busy := []TimeRange{{mustTime(t, 2025, 3, 3, 12, 0), mustTime(t, 2025, 3, 3, 13, 0)}}

	got := SubtractIntervals(window, busy)
	want := []TimeRange{
		{mustTime(t, 2025, 3, 3, 9, 0), mustTime(t, 2025, 3, 3, 12, 0)},
		{mustTime(t, 2025, 3, 3, 13, 0), mustTime(t, 2025, 3, 3, 17, 0)},
	}
	if !equalTimeRangeSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSubtractIntervals_FullCover(t *testing.T) {
	window := TimeRange{mustTime(t, 2025, 3, 3, 9, 0), mustTime(t, 2025, 3, 3, 12, 0)}
	busy := []TimeRange{{mustTime(t, 2025, 3, 3, 8, 0), mustTime(t, 2025, 3, 3, 13, 0)}}

	if got := SubtractIntervals(window, busy); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestSubtractIntervals_TouchingEdgeIsNotOverlap(t *testing.T) {
	window := TimeRange{mustTime(t, 2025, 3, 3, 9, 0), mustTime(t, 2025, 3, 3, 12, 0)}
	busy := []TimeRange{{mustTime(t, 2025, 3, 3, 12, 0), mustTime(t, 2025, 3, 3, 13, 0)}}

	got := SubtractIntervals(window, busy)
	if !equalTimeRangeSlices(got, []TimeRange{window}) {
		t.Fatalf("half-open touch must not subtract, got %v", got)
	}
}

//
// Тесты для Shrink и SplitToTimeSlots
//

func TestShrink_ConsumedByBuffers(t *testing.T) {
	tr := TimeRange{mustTime(t, 2025, 3, 3, 9, 0), mustTime(t, 2025, 3, 3, 9, 30)}
	if _, ok := Shrink(tr, 20*time.Minute, 20*time.Minute); ok {
		t.Fatalf("expected window to be consumed by buffers")
	}
}

func TestSplitToTimeSlots_DropsShortTail(t *testing.T) {
	tr := TimeRange{mustTime(t, 2025, 3, 3, 9, 0), mustTime(t, 2025, 3, 3, 10, 30)}
	slots, err := SplitToTimeSlots(tr, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("SplitToTimeSlots: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
}

func TestSplitToTimeSlots_SmallStepOverlapsCandidates(t *testing.T) {
	tr := TimeRange{mustTime(t, 2025, 3, 3, 9, 0), mustTime(t, 2025, 3, 3, 10, 30)}
	slots, err := SplitToTimeSlots(tr, time.Hour, 30*time.Minute)
	if err != nil {
		t.Fatalf("SplitToTimeSlots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots (09:00, 09:30), got %v", slots)
	}
}

func TestSplitToTimeSlots_InvalidDuration(t *testing.T) {
	tr := TimeRange{mustTime(t, 2025, 3, 3, 9, 0), mustTime(t, 2025, 3, 3, 10, 0)}
	if _, err := SplitToTimeSlots(tr, 0, 0); err == nil {
		t.Fatalf("expected error for zero duration")
	}
}
