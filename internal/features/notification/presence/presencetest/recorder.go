// Package presencetest provides an in-memory presence.Channel for tests.
package presencetest

import (
	"sync"

	"github.com/google/uuid"

	"friend-connect-backend/internal/features/notification/models"
	"friend-connect-backend/internal/features/notification/presence"
)

// Recorder is a Channel that keeps every frame it is sent.
type Recorder struct {
	id string

	mu     sync.Mutex
	frames []models.Frame
	closed bool
	// fail makes Send return presence.ErrChannelFull.
	fail bool
}

func NewRecorder() *Recorder {
	return &Recorder{id: uuid.NewString()}
}

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) Send(frame models.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return presence.ErrChannelClosed
	}
	if r.fail {
		return presence.ErrChannelFull
	}
	r.frames = append(r.frames, frame)
	return nil
}

// SetFailing toggles whether Send rejects frames.
func (r *Recorder) SetFailing(fail bool) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Frames returns a copy of the frames received so far.
func (r *Recorder) Frames() []models.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Events returns the event names received so far, in order.
func (r *Recorder) Events() []string {
	frames := r.Frames()
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}
