package scheduler

import (
	"testing"
	"time"
)

func at(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	return time.Date(2025, time.May, 1, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	existing := []Booking{{
		ID:         "a",
		Title:      "Thesis A",
		Start:      time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC),
		End:        time.Date(2025, time.May, 1, 11, 0, 0, 0, time.UTC),
		BufferMins: 15,
	}}

	tests := []struct {
		name     string
		start    time.Time
		duration time.Duration
		buffer   int
		want     bool
	}{
		{name: "overlapping raw windows", start: at(t, 10, 50), duration: 45 * time.Minute, buffer: 15, want: true},
		{name: "well separated", start: at(t, 12, 30), duration: 45 * time.Minute, buffer: 15, want: false},
		{name: "gap equal to sum of buffers", start: at(t, 11, 30), duration: time.Hour, buffer: 15, want: false},
		{name: "gap below sum of buffers", start: at(t, 11, 20), duration: time.Hour, buffer: 15, want: true},
		{name: "touching buffers without query buffer", start: at(t, 11, 15), duration: time.Hour, buffer: 0, want: false},
		{name: "negative query buffer treated as zero", start: at(t, 11, 15), duration: time.Hour, buffer: -30, want: false},
		{name: "entirely before", start: at(t, 7, 0), duration: time.Hour, buffer: 15, want: false},
		{name: "contains existing", start: at(t, 9, 0), duration: 4 * time.Hour, buffer: 0, want: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Overlaps(existing, tc.start, tc.start.Add(tc.duration), tc.buffer)
			if got != tc.want {
				t.Fatalf("Overlaps() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOverlaps_AsymmetricBuffers(t *testing.T) {
	t.Parallel()

	existing := []Booking{{
		ID:         "long-buffer",
		Start:      at(t, 10, 0),
		End:        at(t, 11, 0),
		BufferMins: 60,
	}}

	// The existing booking's own 60 minute buffer reaches 12:00 even though the
	// new booking carries no buffer at all.
	if !Overlaps(existing, at(t, 11, 45), at(t, 12, 30), 0) {
		t.Fatalf("expected the existing buffer to be honoured independently")
	}
	if Overlaps(existing, at(t, 12, 0), at(t, 12, 30), 0) {
		t.Fatalf("expected strict comparison at the buffered boundary")
	}
}

func TestOverlaps_SkipsInvalidStoredTimestamps(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "zero"},
		{ID: "inverted", Start: at(t, 11, 0), End: at(t, 10, 0)},
	}

	if Overlaps(existing, at(t, 10, 0), at(t, 11, 0), 15) {
		t.Fatalf("expected invalid bookings to be ignored")
	}
}

func TestFirstOverlap_ReturnsFirstMatch(t *testing.T) {
	t.Parallel()

	existing := []Booking{
		{ID: "one", Title: "First", Start: at(t, 9, 0), End: at(t, 10, 0)},
		{ID: "two", Title: "Second", Start: at(t, 9, 30), End: at(t, 10, 30)},
	}

	got, ok := FirstOverlap(existing, at(t, 9, 45), at(t, 10, 15), 0)
	if !ok {
		t.Fatalf("expected an overlap")
	}
	if got.Title != "First" {
		t.Fatalf("expected first colliding booking, got %q", got.Title)
	}
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	t.Run("participant overlap produces conflict", func(t *testing.T) {
		t.Parallel()

		existing := []Booking{{
			ID: "a", Title: "Thesis A", People: []string{"cand-a", "panel-1"},
			Start: at(t, 10, 0), End: at(t, 11, 0), BufferMins: 15,
		}}
		candidate := Booking{
			ID: "b", People: []string{"cand-b", "panel-1"},
			Start: at(t, 10, 50), End: at(t, 11, 35), BufferMins: 15,
		}

		conflicts := DetectConflicts(existing, candidate)
		if len(conflicts) != 1 {
			t.Fatalf("expected one conflict, got %d", len(conflicts))
		}
		if conflicts[0].Type != ConflictTypeParticipant || conflicts[0].Participant != "panel-1" {
			t.Fatalf("unexpected conflict: %+v", conflicts[0])
		}
		if conflicts[0].WithTitle != "Thesis A" {
			t.Fatalf("expected conflicting title, got %q", conflicts[0].WithTitle)
		}
	})

	t.Run("venue overlap produces conflict", func(t *testing.T) {
		t.Parallel()

		existing := []Booking{{
			ID: "a", Title: "Thesis A", People: []string{"x"}, Venue: "Hall 1",
			Start: at(t, 10, 0), End: at(t, 11, 0),
		}}
		candidate := Booking{
			ID: "b", People: []string{"y"}, Venue: " Hall 1 ",
			Start: at(t, 10, 30), End: at(t, 11, 30),
		}

		conflicts := DetectConflicts(existing, candidate)
		if len(conflicts) != 1 || conflicts[0].Type != ConflictTypeVenue {
			t.Fatalf("expected venue conflict, got %+v", conflicts)
		}
	})

	t.Run("empty venue never matches", func(t *testing.T) {
		t.Parallel()

		existing := []Booking{{ID: "a", People: []string{"x"}, Start: at(t, 10, 0), End: at(t, 11, 0)}}
		candidate := Booking{ID: "b", People: []string{"y"}, Start: at(t, 10, 0), End: at(t, 11, 0)}

		if conflicts := DetectConflicts(existing, candidate); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %+v", conflicts)
		}
	})

	t.Run("non-overlapping bookings yield no conflicts", func(t *testing.T) {
		t.Parallel()

		existing := []Booking{{
			ID: "a", People: []string{"panel-1"}, Venue: "Hall 1",
			Start: at(t, 10, 0), End: at(t, 11, 0), BufferMins: 15,
		}}
		candidate := Booking{
			ID: "b", People: []string{"panel-1"}, Venue: "Hall 1",
			Start: at(t, 12, 30), End: at(t, 13, 15), BufferMins: 15,
		}

		if conflicts := DetectConflicts(existing, candidate); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %+v", conflicts)
		}
	})

	t.Run("own booking is excluded", func(t *testing.T) {
		t.Parallel()

		existing := []Booking{{ID: "a", People: []string{"p"}, Start: at(t, 10, 0), End: at(t, 11, 0)}}
		candidate := Booking{ID: "a", People: []string{"p"}, Start: at(t, 10, 15), End: at(t, 11, 15)}

		if conflicts := DetectConflicts(existing, candidate); len(conflicts) != 0 {
			t.Fatalf("expected self to be excluded, got %+v", conflicts)
		}
	})
}
