// Package cache stores the last resolved schedule status between requests.
package cache

import (
	"context"
	"sync"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// StatusCache keeps at most one resolved status. Freshness is decided by the caller.
type StatusCache interface {
	Get(ctx context.Context) (model.ScheduleStatus, bool)
	Set(ctx context.Context, status model.ScheduleStatus) error
	Invalidate(ctx context.Context) error
}

// Memory is the in-process StatusCache.
type Memory struct {
	mu     sync.RWMutex
	status *model.ScheduleStatus
}

var _ StatusCache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get(context.Context) (model.ScheduleStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == nil {
		return model.ScheduleStatus{}, false
	}
	return copyStatus(*m.status), true
}

func (m *Memory) Set(_ context.Context, status model.ScheduleStatus) error {
	c := copyStatus(status)
	m.mu.Lock()
	m.status = &c
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(context.Context) error {
	m.mu.Lock()
	m.status = nil
	m.mu.Unlock()
	return nil
}

func copyStatus(s model.ScheduleStatus) model.ScheduleStatus {
	if s.CurrentSlot != nil {
		slot := s.CurrentSlot.Clone()
		s.CurrentSlot = &slot
	}
	if s.NextChangeAt != nil {
		t := *s.NextChangeAt
		s.NextChangeAt = &t
	}
	return s
}
