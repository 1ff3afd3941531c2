// Package notify delivers defense events to recipients asynchronously.
//
// A Dispatcher queues messages and hands them to a pool of workers which fan
// each message out to every configured Sink. Enqueueing never blocks: when the
// queue is full the message is dropped and counted.
package notify

import (
	"context"
	"time"
)

// Message is a defense event addressed to a set of users.
type Message struct {
	Type           string
	Recipients     []string
	ActorID        string
	DefenseID      string
	Title          string
	StartAt        time.Time
	EndAt          time.Time
	Status         string
	ResponseStatus string
	Reason         string
	OccurredAt     time.Time
}

// Sink delivers a message to one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}
