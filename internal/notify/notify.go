// Package notify pushes schedule changes to players.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

const (
	MessageStatus          = "schedule_status"
	MessageScheduleUpdated = "schedule_updated"
)

// Message is the payload players receive. Players that only get a schedule_updated
// notice re-fetch the status themselves.
type Message struct {
	Type         string     `json:"type"`
	Reason       string     `json:"reason,omitempty"`
	Enabled      bool       `json:"schedule_enabled"`
	SlotID       string     `json:"slot_id,omitempty"`
	SlotName     string     `json:"slot_name,omitempty"`
	UsingDefault bool       `json:"using_default"`
	NextChangeAt *time.Time `json:"next_change_at"`
	Timestamp    int64      `json:"timestamp"`
}

func StatusMessage(status model.ScheduleStatus, now time.Time) Message {
	m := Message{
		Type:         MessageStatus,
		Enabled:      status.Enabled,
		UsingDefault: status.UsingDefault,
		NextChangeAt: status.NextChangeAt,
		Timestamp:    now.Unix(),
	}
	if status.CurrentSlot != nil {
		m.SlotID = status.CurrentSlot.ID
		m.SlotName = status.CurrentSlot.Name
	}
	return m
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close()
}

// Nop discards every message. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Message) error { return nil }
func (Nop) Close()                                  {}

// Fanout delivers every message to all of its publishers. A failing publisher does
// not stop delivery to the rest; the errors are joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() {
	for _, p := range f {
		p.Close()
	}
}
