package application

import "time"

// NotificationType names the event a notification reports.
type NotificationType string

const (
	NotificationDefenseScheduled       NotificationType = "defense_scheduled"
	NotificationDefenseUpdated         NotificationType = "defense_updated"
	NotificationDefenseCancelled       NotificationType = "defense_cancelled"
	NotificationDefenseResponse        NotificationType = "defense_response"
	NotificationDefenseChangeRequested NotificationType = "defense_change_requested"
)

// Notification describes a defense event to fan out to recipients.
type Notification struct {
	Type           NotificationType
	Recipients     []string
	ActorID        string
	DefenseID      string
	Title          string
	StartAt        time.Time
	EndAt          time.Time
	Status         DefenseStatus
	ResponseStatus ResponseStatus
	Reason         string
}

func newDefenseNotification(kind NotificationType, d Defense, actorID string, recipients []string) Notification {
	return Notification{
		Type:       kind,
		Recipients: uniqueStrings(recipients),
		ActorID:    actorID,
		DefenseID:  d.ID,
		Title:      d.Title,
		StartAt:    d.Start,
		EndAt:      d.End,
		Status:     d.Status,
	}
}
