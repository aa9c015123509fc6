package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/resilience"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Manager owns every terminal session of the process. It is safe for
// concurrent use; operations on different ids never block each other
// beyond short registry lookups.
type Manager struct {
	factory  Factory
	sink     Sink
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	breaker  *resilience.Breaker
	settings config.TerminalConfig

	profileMu sync.RWMutex
	base      config.Profile
	profile   config.Profile

	registry *Registry
	locks    *keyLock
	events   chan Event

	mu           sync.Mutex
	started      bool
	closed       bool
	closing      chan struct{}
	quit         chan struct{}
	dispatchDone chan struct{}
}

// Option configures a Manager
type Option func(*Manager)

// WithFactory sets how PTYs are allocated (defaults to real PTYs)
func WithFactory(f Factory) Option {
	return func(m *Manager) { m.factory = f }
}

// WithSink sets where events are published (defaults to Discard)
func WithSink(s Sink) Option {
	return func(m *Manager) { m.sink = s }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithConfig sets the terminal settings and the base shell profile
func WithConfig(cfg config.TerminalConfig) Option {
	return func(m *Manager) { m.settings = cfg }
}

// NewManager creates a session manager. Call Start to begin delivering
// events and Shutdown to tear every session down.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		factory:      NewPTYFactory(),
		sink:         Discard,
		logger:       zap.NewNop(),
		settings:     config.Default().Terminal,
		locks:        newKeyLock(),
		closing:      make(chan struct{}),
		quit:         make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.settings.ChunkSize <= 0 {
		m.settings.ChunkSize = 1024
	}
	if m.settings.EventBuffer <= 0 {
		m.settings.EventBuffer = 256
	}
	if m.settings.KillGrace <= 0 {
		m.settings.KillGrace = 2 * time.Second
	}

	m.logger = m.logger.Named("terminal")
	m.registry = NewRegistry(m.settings.Shards)
	m.events = make(chan Event, m.settings.EventBuffer)
	m.base = m.settings.BaseProfile()
	m.profile = m.base

	if m.settings.SpawnBreaker {
		m.breaker = resilience.New("spawn", resilience.SpawnSettings(
			func(err error) bool {
				return errors.Is(err, ErrPtyAllocation) || errors.Is(err, ErrProcessSpawn)
			},
			func(name string, from, to resilience.State) {
				m.logger.Warn("Spawn breaker changed state",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		))
	}

	m.metrics.ObserveQueueDepth(func() int { return len(m.events) })

	return m
}

// Start launches the event dispatcher. ctx is handed to every Publish call.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if m.started {
		return errors.New("terminal manager already started")
	}
	m.started = true

	go m.dispatch(ctx)
	return nil
}

// SetProfile overlays p on the configured shell profile for future spawns.
// A nil profile restores the configured one.
func (m *Manager) SetProfile(p *config.Profile) {
	m.profileMu.Lock()
	m.profile = m.base.Merge(p)
	shell := m.profile.Shell
	m.profileMu.Unlock()

	m.logger.Info("Shell profile updated", zap.String("shell", shell))
}

// Profile returns the profile used for new sessions
func (m *Manager) Profile() config.Profile {
	m.profileMu.RLock()
	defer m.profileMu.RUnlock()
	return m.profile
}

// Spawn starts a shell on a new PTY of the given size and registers it
// under id. A session already registered under id is killed first.
func (m *Manager) Spawn(ctx context.Context, id string, cols, rows uint16) (SessionInfo, error) {
	if id == "" {
		return SessionInfo{}, fmt.Errorf("%w: session id is required", ErrInvalidArgument)
	}
	if cols == 0 || rows == 0 {
		return SessionInfo{}, fmt.Errorf("%w: size must be positive, got %dx%d", ErrInvalidArgument, cols, rows)
	}
	if m.isClosed() {
		return SessionInfo{}, ErrManagerClosed
	}

	unlock := m.locks.Lock(id)
	defer unlock()

	if prev, ok := m.registry.Get(id); ok {
		m.logger.Info("Replacing session", zap.String("session_id", id), zap.Int("old_pid", prev.pid))
		if err := m.stopSession(prev); err != nil {
			m.logger.Warn("Replaced session did not stop cleanly", zap.String("session_id", id), zap.Error(err))
		}
		m.registry.Remove(id, prev)
	}

	if err := ctx.Err(); err != nil {
		return SessionInfo{}, err
	}

	size := Size{Cols: cols, Rows: rows}
	cmd := m.command()

	start := time.Now()
	term, err := m.start(cmd, size)
	m.metrics.RecordSpawn(spawnStatus(err), time.Since(start))
	if err != nil {
		m.logger.Warn("Spawn failed",
			zap.String("session_id", id),
			zap.String("shell", cmd.Path),
			zap.Error(err))
		return SessionInfo{}, err
	}

	s := newSession(id, term, size, m.settings.ScrollbackBytes)
	m.registry.Insert(id, s)
	go m.readLoop(s)

	// Shutdown may have listed the registry before the insert
	if m.isClosed() {
		_ = m.stopSession(s)
		m.registry.Remove(id, s)
		return SessionInfo{}, ErrManagerClosed
	}

	m.metrics.SetSessionsActive(m.registry.Len())
	m.logger.Info("Session spawned",
		zap.String("session_id", id),
		zap.Int("pid", s.pid),
		zap.Uint16("cols", cols),
		zap.Uint16("rows", rows))

	return s.info(), nil
}

func (m *Manager) start(cmd Command, size Size) (Terminal, error) {
	if m.breaker == nil {
		return m.factory.Start(cmd, size)
	}

	var term Terminal
	err := m.breaker.Do(func() error {
		var err error
		term, err = m.factory.Start(cmd, size)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrSpawnThrottled, err)
	}
	return term, err
}

func spawnStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSpawnThrottled):
		return "throttled"
	case errors.Is(err, ErrPtyAllocation):
		return "pty_allocation"
	case errors.Is(err, ErrProcessSpawn):
		return "process_spawn"
	default:
		return "error"
	}
}

func (m *Manager) command() Command {
	p := m.Profile()

	env := append(os.Environ(), "TERM=xterm-256color")
	keys := make([]string, 0, len(p.Env))
	for k := range p.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+p.Env[k])
	}

	return Command{
		Path: p.Shell,
		Args: append([]string(nil), p.Args...),
		Dir:  p.WorkDir,
		Env:  env,
	}
}

// Write sends input to a session. Unknown ids and sessions whose shell has
// exited are ignored unless strict ids are configured.
func (m *Manager) Write(id, data string) error {
	if m.isClosed() {
		return ErrManagerClosed
	}

	s, ok := m.registry.Get(id)
	if !ok {
		return m.missing(id)
	}

	if err := s.write([]byte(data)); err != nil {
		if errors.Is(err, errSessionClosed) && !m.settings.StrictIDs {
			return nil
		}
		return fmt.Errorf("%w: session %s: %w", ErrWrite, id, err)
	}
	return nil
}

// Resize changes a session's PTY size; the child receives SIGWINCH
func (m *Manager) Resize(id string, cols, rows uint16) error {
	if cols == 0 || rows == 0 {
		return fmt.Errorf("%w: size must be positive, got %dx%d", ErrInvalidArgument, cols, rows)
	}
	if m.isClosed() {
		return ErrManagerClosed
	}

	s, ok := m.registry.Get(id)
	if !ok {
		return m.missing(id)
	}

	if err := s.resize(Size{Cols: cols, Rows: rows}); err != nil {
		if errors.Is(err, errSessionClosed) && !m.settings.StrictIDs {
			return nil
		}
		return fmt.Errorf("%w: session %s: %w", ErrResize, id, err)
	}
	return nil
}

func (m *Manager) missing(id string) error {
	if m.settings.StrictIDs {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Kill stops a session and removes it. It always succeeds: killing an
// unknown id is a no-op, and a shell that could not be reaped is logged
// and dropped from the registry anyway.
func (m *Manager) Kill(id string) error {
	if err := m.remove(id); err != nil {
		m.logger.Warn("Kill left session behind", zap.String("session_id", id), zap.Error(err))
	}
	return nil
}

// remove stops and unregisters id, reporting ErrKillTimeout when the
// reader outlived both grace periods
func (m *Manager) remove(id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, ok := m.registry.Get(id)
	if !ok {
		return nil
	}

	err := m.stopSession(s)
	m.registry.Remove(id, s)
	m.metrics.SetSessionsActive(m.registry.Len())

	m.logger.Info("Session killed", zap.String("session_id", id), zap.Int("pid", s.pid))
	return err
}

// stopSession signals the shell, closes the master side and waits for the
// reader to finish, escalating to SIGKILL after the grace period.
func (m *Manager) stopSession(s *Session) error {
	start := time.Now()
	defer func() { m.metrics.RecordKill(time.Since(start)) }()

	alive := !s.exited()
	s.requestStop()
	if alive {
		if err := s.term.Hangup(); err != nil {
			m.logger.Debug("SIGHUP failed", zap.String("session_id", s.id), zap.Error(err))
		}
	}
	if err := s.closeTerminal(); err != nil {
		m.logger.Debug("Closing PTY failed", zap.String("session_id", s.id), zap.Error(err))
	}

	if waitClosed(s.done, m.settings.KillGrace) {
		return nil
	}

	m.logger.Warn("Shell ignored SIGHUP, sending SIGKILL", zap.String("session_id", s.id), zap.Int("pid", s.pid))
	if err := s.term.Kill(); err != nil {
		m.logger.Debug("SIGKILL failed", zap.String("session_id", s.id), zap.Error(err))
	}

	if waitClosed(s.done, m.settings.KillGrace) {
		return nil
	}

	m.logger.Error("Reader still running after SIGKILL", zap.String("session_id", s.id), zap.Int("pid", s.pid))
	// Reap here so the shell does not linger as a zombie behind the reader
	go func() {
		if _, err := s.term.Wait(); err != nil {
			m.logger.Debug("Reaping shell failed", zap.String("session_id", s.id), zap.Error(err))
		}
	}()
	return fmt.Errorf("%w: %s", ErrKillTimeout, s.id)
}

func waitClosed(ch <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

// SpawnBreaker returns the breaker guarding Spawn, or nil when it is
// disabled
func (m *Manager) SpawnBreaker() *resilience.Breaker {
	return m.breaker
}

// Get returns a session's current info
func (m *Manager) Get(id string) (SessionInfo, bool) {
	s, ok := m.registry.Get(id)
	if !ok {
		return SessionInfo{}, false
	}
	return s.info(), true
}

// List returns all registered sessions ordered by id
func (m *Manager) List() []SessionInfo {
	sessions := m.registry.List()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Scrollback returns the most recent raw output of a session
func (m *Manager) Scrollback(id string) ([]byte, error) {
	s, ok := m.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.scrollback.Bytes(), nil
}

// readLoop forwards a session's output until EOF, a read error or a kill.
// It owns the master side once it returns and reaps the child.
func (m *Manager) readLoop(s *Session) {
	buf := make([]byte, m.settings.ChunkSize)
	dec := newChunkDecoder()
	reason := "eof"

	for {
		n, err := s.term.Read(buf)
		if n > 0 {
			s.record(buf[:n])
			m.metrics.RecordRead(n)
			if text := dec.Decode(buf[:n]); text != "" {
				if !m.emit(s, DataEvent(s.id, text)) {
					reason = "stopped"
					break
				}
			}
		}
		if err != nil {
			switch {
			case s.stopping():
				reason = "stopped"
			case errors.Is(err, io.EOF):
				reason = "eof"
			default:
				reason = "error"
				m.logger.Debug("PTY read failed", zap.String("session_id", s.id), zap.Error(err))
			}
			break
		}
		if n == 0 {
			break
		}
	}

	if s.stopping() {
		reason = "stopped"
	}
	if reason != "stopped" {
		if tail := dec.Flush(); tail != "" {
			m.emit(s, DataEvent(s.id, tail))
		}
	}

	_ = s.closeTerminal()
	code, err := s.term.Wait()
	if err != nil {
		m.logger.Debug("Reaping shell failed", zap.String("session_id", s.id), zap.Error(err))
	}

	state := StateExited
	if reason == "error" {
		state = StateFailed
	}
	s.finish(state, code)
	close(s.done)
	m.metrics.RecordReaderExit(reason)

	m.logger.Info("Session reader stopped",
		zap.String("session_id", s.id),
		zap.String("reason", reason),
		zap.Int("exit_code", code))

	if reason != "stopped" {
		m.emit(s, ExitEvent(s.id, code))
	}
}

// emit queues ev for the dispatcher. It gives up when the session is
// stopped or the manager is shutting down, so a full queue never wedges
// a kill.
func (m *Manager) emit(s *Session, ev Event) bool {
	select {
	case m.events <- ev:
		return true
	case <-s.stop:
		return false
	case <-m.closing:
		return false
	}
}

func (m *Manager) dispatch(ctx context.Context) {
	defer close(m.dispatchDone)

	for {
		select {
		case ev := <-m.events:
			m.publish(ctx, ev)
		case <-m.quit:
			// Deliver what was queued before shutdown
			for {
				select {
				case ev := <-m.events:
					m.publish(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) publish(ctx context.Context, ev Event) {
	err := m.sink.Publish(ctx, ev)
	m.metrics.RecordPublish(err)
	if err != nil {
		m.logger.Debug("Publish failed", zap.String("event", ev.Name), zap.Error(err))
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Shutdown kills every session and stops the dispatcher. It returns the
// aggregated teardown failures, or ctx's error if ctx expires first.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	started := m.started
	close(m.closing)
	m.mu.Unlock()

	sessions := m.registry.List()
	m.logger.Info("Shutting down terminal manager", zap.Int("sessions", len(sessions)))

	var (
		result *multierror.Error
		resMu  sync.Mutex
		wg     sync.WaitGroup
	)
	for _, s := range sessions {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := m.remove(id); err != nil {
				resMu.Lock()
				result = multierror.Append(result, err)
				resMu.Unlock()
			}
		}(s.id)
	}

	killed := make(chan struct{})
	go func() {
		wg.Wait()
		close(killed)
	}()

	var (
		err      *multierror.Error
		timedOut bool
	)
	select {
	case <-killed:
		err = result
	case <-ctx.Done():
		timedOut = true
		// Kills still in flight keep appending to result; report a copy
		resMu.Lock()
		if result != nil {
			err = multierror.Append(err, result.Errors...)
		}
		resMu.Unlock()
		err = multierror.Append(err, ctx.Err())
	}

	close(m.quit)
	if started {
		select {
		case <-m.dispatchDone:
		case <-ctx.Done():
			if !timedOut {
				err = multierror.Append(err, ctx.Err())
			}
		}
	}

	return err.ErrorOrNil()
}
