package motion

import (
	"context"
	"sync"
	"time"
)

// Update is a position report from a moving axis
type Update struct {
	Time time.Time
	Pos  float64
}

// Status tracks a single commanded move.  The device side calls Publish as
// the position changes and Finish once; consumers Wait on it or Watch it.
type Status struct {
	mu   sync.Mutex
	done chan struct{}
	err  error
	subs map[*Subscription]struct{}
}

// NewStatus returns a Status for a move in progress
func NewStatus() *Status {
	return &Status{
		done: make(chan struct{}),
		subs: make(map[*Subscription]struct{})}
}

// Completed returns a Status which is already finished with err
func Completed(err error) *Status {
	s := NewStatus()
	s.Finish(err)
	return s
}

// Done returns true once the move has finished, successfully or not
func (s *Status) Done() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Finished returns a channel that is closed when the move finishes
func (s *Status) Finished() <-chan struct{} {
	return s.done
}

// Err returns the error the move finished with.  It is nil while the move is
// in progress.
func (s *Status) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the move finishes or ctx ends
func (s *Status) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch subscribes fn to every position update published after this call.
// fn runs on the publisher's goroutine and must not block for long.
// Watching a finished Status yields a subscription that never fires.
func (s *Status) Watch(fn func(Update)) *Subscription {
	sub := &Subscription{status: s, fn: fn}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Done() {
		s.subs[sub] = struct{}{}
	}
	return sub
}

// Publish reports a new position to every subscriber
func (s *Status) Publish(pos float64) {
	u := Update{Time: time.Now(), Pos: pos}
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(u)
	}
}

// Finish marks the move as finished with err and drops all subscribers.
// Only the first call has any effect.
func (s *Status) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Done() {
		return
	}
	s.err = err
	s.subs = make(map[*Subscription]struct{})
	close(s.done)
}

// Subscription is a registration of a callback on a Status
type Subscription struct {
	status *Status
	fn     func(Update)
}

// Cancel removes the subscription; fn is not called for later updates
func (sub *Subscription) Cancel() {
	s := sub.status
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
}
