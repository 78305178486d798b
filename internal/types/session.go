package types

import (
	"errors"
	"time"
)

// ErrSessionFinalized is returned when a terminal session is finalized again.
var ErrSessionFinalized = errors.New("session already finalized")

// NewSession starts a session in the running state.
func NewSession(id string, kind SessionKind, start time.Time) *ScrapingSession {
	return &ScrapingSession{
		ID:        id,
		Kind:      kind,
		StartTime: start,
		Sources:   []string{},
		Status:    SessionRunning,
	}
}

// Complete moves a running session to completed.
func (s *ScrapingSession) Complete(end time.Time) error {
	if s.Status != SessionRunning {
		return ErrSessionFinalized
	}
	s.Status = SessionCompleted
	s.EndTime = &end
	return nil
}

// Fail moves a running session to failed and records the error.
func (s *ScrapingSession) Fail(end time.Time, err error) error {
	if s.Status != SessionRunning {
		return ErrSessionFinalized
	}
	s.Status = SessionFailed
	s.EndTime = &end
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
	}
	return nil
}
