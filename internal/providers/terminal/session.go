package terminal

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// errSessionClosed is returned by session I/O once the master side is gone
var errSessionClosed = errors.New("session closed")

// Session represents a running terminal session
type Session struct {
	id        string
	term      Terminal
	pid       int
	startedAt time.Time

	// Output history for re-painting a re-shown terminal
	scrollback *Buffer
	bytesRead  atomic.Int64

	// Lifecycle
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// writeMu serializes input; it is not held by close, so a write blocked
	// on a full PTY is unblocked by closing the master side
	writeMu sync.Mutex

	mu       sync.Mutex
	size     Size
	state    State
	closed   bool
	exitCode *int
	exitedAt *time.Time
}

func newSession(id string, term Terminal, size Size, scrollback int) *Session {
	return &Session{
		id:         id,
		term:       term,
		pid:        term.Pid(),
		startedAt:  time.Now(),
		scrollback: NewBuffer(scrollback),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		size:       size,
		state:      StateRunning,
	}
}

// ID returns the caller-chosen session id
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the reader has stopped and the child is reaped
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) write(p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errSessionClosed
	}
	for len(p) > 0 {
		n, err := s.term.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func (s *Session) resize(size Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSessionClosed
	}
	if err := s.term.Resize(size); err != nil {
		return err
	}
	s.size = size
	return nil
}

// requestStop marks the session killed and wakes the reader
func (s *Session) requestStop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.state == StateRunning {
			s.state = StateKilled
		}
		s.mu.Unlock()
		close(s.stop)
	})
}

func (s *Session) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Session) exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// closeTerminal closes the master side; later writes and resizes fail
func (s *Session) closeTerminal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.term.Close()
}

func (s *Session) record(p []byte) {
	_, _ = s.scrollback.Write(p)
	s.bytesRead.Add(int64(len(p)))
}

func (s *Session) finish(state State, code int) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		s.state = state
	}
	s.exitCode = &code
	s.exitedAt = &now
}

func (s *Session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := SessionInfo{
		ID:        s.id,
		Cols:      s.size.Cols,
		Rows:      s.size.Rows,
		Pid:       s.pid,
		State:     s.state,
		StartedAt: s.startedAt,
		BytesRead: s.bytesRead.Load(),
	}
	if s.exitCode != nil {
		code := *s.exitCode
		info.ExitCode = &code
	}
	if s.exitedAt != nil {
		at := *s.exitedAt
		info.ExitedAt = &at
	}
	return info
}
