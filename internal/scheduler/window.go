package scheduler

import (
	"sort"
	"strings"
	"time"
)

const (
	// MinDurationMins is the floor applied to requested defense durations.
	MinDurationMins = 15
	// DefaultDurationMins is used by callers when no duration was supplied.
	DefaultDurationMins = 60
	// DefaultBufferMins is used by callers when no buffer was supplied.
	DefaultBufferMins = 15
)

// Window is a booking interval together with its conflict buffer.
type Window struct {
	Start        time.Time
	End          time.Time
	DurationMins int
	BufferMins   int
}

// ComputeWindow clamps duration to MinDurationMins and buffer to zero, then
// derives the end instant.
func ComputeWindow(start time.Time, durationMins, bufferMins int) Window {
	if durationMins < MinDurationMins {
		durationMins = MinDurationMins
	}
	if bufferMins < 0 {
		bufferMins = 0
	}
	return Window{
		Start:        start,
		End:          start.Add(time.Duration(durationMins) * time.Minute),
		DurationMins: durationMins,
		BufferMins:   bufferMins,
	}
}

// Modality describes how a defense is attended.
type Modality string

const (
	ModalityInPerson Modality = "in-person"
	ModalityOnline   Modality = "online"
	ModalityHybrid   Modality = "hybrid"
)

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	switch m {
	case ModalityInPerson, ModalityOnline, ModalityHybrid:
		return true
	default:
		return false
	}
}

// NormalizeVenueAndLink trims venue and meeting link and enforces the location
// requirements of the modality.
func NormalizeVenueAndLink(modality Modality, venue, link string) (string, string, error) {
	venue = strings.TrimSpace(venue)
	link = strings.TrimSpace(link)

	switch modality {
	case ModalityInPerson:
		if venue == "" {
			return "", "", fieldError("venue", "venue is required for in-person defenses")
		}
	case ModalityOnline:
		if link == "" {
			return "", "", fieldError("meetingLink", "meeting link is required for online defenses")
		}
	case ModalityHybrid:
		if venue == "" && link == "" {
			return "", "", fieldError("venue", "venue or meeting link is required for hybrid defenses")
		}
	default:
		return "", "", fieldError("modality", "modality must be one of in-person, online, hybrid")
	}

	return venue, link, nil
}

// BuildPersonSet returns the distinct non-empty ids of everyone attending, sorted.
func BuildPersonSet(candidate string, panelists []string, supervisor string) []string {
	seen := make(map[string]struct{}, len(panelists)+2)
	out := make([]string, 0, len(panelists)+2)
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	add(candidate)
	for _, id := range panelists {
		add(id)
	}
	add(supervisor)

	sort.Strings(out)
	return out
}
