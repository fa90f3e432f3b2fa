// Package stream tracks per-output-channel streaming sessions and
// reassembles retained chunks into playable files.
package stream

import (
	"context"

	"github.com/jfk9w-go/flu/syncf"
	"github.com/pkg/errors"
)

// State is a session lifecycle phase. No state is ever revisited once left.
type State string

const (
	Empty      State = "empty"
	Streaming  State = "streaming"
	Finalizing State = "finalizing"
	Done       State = "done"
)

var ErrSessionDone = errors.New("session is complete")

// Session retains the raw chunks of one output channel in emission order.
// Calls for the same session must be serialized by the caller.
type Session struct {
	ID string

	state  State
	chunks [][]byte
}

func newSession(id string) *Session {
	return &Session{ID: id, state: Empty}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Append(data []byte) error {
	switch s.state {
	case Empty, Streaming:
		s.state = Streaming
		s.chunks = append(s.chunks, data)
		return nil
	default:
		return errors.Wrapf(ErrSessionDone, "session %s is %s", s.ID, s.state)
	}
}

// Finalize hands out the retained chunks and seals the session against
// further appends.
func (s *Session) Finalize() ([][]byte, error) {
	switch s.state {
	case Empty, Streaming:
		s.state = Finalizing
		return s.chunks, nil
	default:
		return nil, errors.Wrapf(ErrSessionDone, "session %s is %s", s.ID, s.state)
	}
}

func (s *Session) complete() {
	s.state = Done
	s.chunks = nil
}

// Registry owns the live sessions of one component instance, keyed by
// output channel id. Distinct ids never observe each other's chunks.
type Registry struct {
	sessions map[string]*Session
	mu       syncf.RWMutex
}

func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := r.mu.Lock(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	defer cancel()

	if r.sessions == nil {
		r.sessions = make(map[string]*Session)
	}

	session, ok := r.sessions[id]
	if !ok {
		session = newSession(id)
		r.sessions[id] = session
	}

	return session, nil
}

// Discard drops the session and its retained chunks. Discarding an unknown
// id is a no-op.
func (r *Registry) Discard(ctx context.Context, id string) error {
	ctx, cancel := r.mu.Lock(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	defer cancel()

	if session, ok := r.sessions[id]; ok {
		session.complete()
		delete(r.sessions, id)
	}

	return nil
}
