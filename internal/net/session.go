package net

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// State is where a connection is in its lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is one authenticated client connection and the rooms it joined.
type Session struct {
	ID      string
	Subject string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	state     atomic.Int32
	dropped   atomic.Int64

	mu    sync.Mutex
	rooms map[string]struct{}
}

func NewSession(subject string, sendBuffer int) *Session {
	s := &Session{
		ID:      ulid.Make().String(),
		Subject: subject,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		rooms:   make(map[string]struct{}),
	}
	s.state.Store(int32(StateAuthenticated))
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// Enqueue queues data for the writer without blocking. It reports false when
// the session is closed or its queue is full; the frame is then dropped for
// this session only.
func (s *Session) Enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped is the number of frames discarded because the queue was full.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

// Close marks the session closed and stops its writer. Safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		close(s.done)
	})
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) addRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = struct{}{}
}

func (s *Session) removeRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

// Rooms returns the joined room ids, sorted.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		rooms = append(rooms, id)
	}
	sort.Strings(rooms)
	return rooms
}
