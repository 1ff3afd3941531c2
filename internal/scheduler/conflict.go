package scheduler

import (
	"strings"
	"time"
)

// Booking is a scheduled defense as seen by conflict detection.
type Booking struct {
	ID         string
	Title      string
	People     []string
	Venue      string
	Start      time.Time
	End        time.Time
	BufferMins int
}

// buffered returns the booking interval widened by its own buffer. ok is false
// when the stored timestamps cannot form an interval.
func (b Booking) buffered() (time.Time, time.Time, bool) {
	if b.Start.IsZero() || b.End.IsZero() || b.End.Before(b.Start) {
		return time.Time{}, time.Time{}, false
	}
	pad := time.Duration(max(b.BufferMins, 0)) * time.Minute
	return b.Start.Add(-pad), b.End.Add(pad), true
}

// ConflictType describes why two bookings collide.
type ConflictType string

const (
	// ConflictTypeParticipant indicates a person is double-booked.
	ConflictTypeParticipant ConflictType = "participant"
	// ConflictTypeVenue indicates a venue is double-booked.
	ConflictTypeVenue ConflictType = "venue"
)

// Conflict details an overlapping booking that callers can present to users.
type Conflict struct {
	WithBookingID string
	WithTitle     string
	Type          ConflictType
	Participant   string
	Venue         string
}

// Overlaps reports whether the window [start, end] widened by bufferMins
// intersects any existing booking widened by that booking's own buffer.
func Overlaps(existing []Booking, start, end time.Time, bufferMins int) bool {
	_, ok := FirstOverlap(existing, start, end, bufferMins)
	return ok
}

// FirstOverlap returns the first existing booking whose buffered interval
// intersects the buffered query window. Bookings with invalid timestamps are skipped.
func FirstOverlap(existing []Booking, start, end time.Time, bufferMins int) (Booking, bool) {
	pad := time.Duration(max(bufferMins, 0)) * time.Minute
	queryStart, queryEnd := start.Add(-pad), end.Add(pad)

	for _, booking := range existing {
		bStart, bEnd, ok := booking.buffered()
		if !ok {
			continue
		}
		if queryStart.Before(bEnd) && queryEnd.After(bStart) {
			return booking, true
		}
	}
	return Booking{}, false
}

// DetectConflicts lists every existing booking that overlaps the candidate in
// buffered time and shares a person or the same non-empty venue. The candidate's
// own id is never reported.
func DetectConflicts(existing []Booking, candidate Booking) []Conflict {
	var conflicts []Conflict
	people := make(map[string]struct{}, len(candidate.People))
	for _, id := range candidate.People {
		people[id] = struct{}{}
	}
	venue := strings.TrimSpace(candidate.Venue)

	for _, booking := range existing {
		if candidate.ID != "" && booking.ID == candidate.ID {
			continue
		}
		if !Overlaps([]Booking{booking}, candidate.Start, candidate.End, candidate.BufferMins) {
			continue
		}

		shared := ""
		for _, id := range booking.People {
			if _, ok := people[id]; ok {
				shared = id
				break
			}
		}
		if shared != "" {
			conflicts = append(conflicts, Conflict{
				WithBookingID: booking.ID,
				WithTitle:     booking.Title,
				Type:          ConflictTypeParticipant,
				Participant:   shared,
			})
			continue
		}

		if venue != "" && strings.TrimSpace(booking.Venue) == venue {
			conflicts = append(conflicts, Conflict{
				WithBookingID: booking.ID,
				WithTitle:     booking.Title,
				Type:          ConflictTypeVenue,
				Venue:         venue,
			})
		}
	}

	return conflicts
}
