package terminal

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/require"
)

var fakePids atomic.Int32

// fakeTerminal stands in for a PTY: the test plays the shell by writing
// to out, and the "process" exits when hung up unless told otherwise.
type fakeTerminal struct {
	pid  int
	cmd  Command
	outR *io.PipeReader
	outW *io.PipeWriter

	ignoreHangup bool
	ignoreKill   bool
	writeErr     error
	resizeErr    error

	mu    sync.Mutex
	input bytes.Buffer
	size  Size

	exited   chan struct{}
	exitOnce sync.Once
	code     int

	hangups atomic.Int32
	kills   atomic.Int32
	closed  atomic.Bool
}

func newFakeTerminal(cmd Command, size Size) *fakeTerminal {
	r, w := io.Pipe()
	return &fakeTerminal{
		pid:    int(fakePids.Add(1)) + 1000,
		cmd:    cmd,
		outR:   r,
		outW:   w,
		size:   size,
		exited: make(chan struct{}),
	}
}

func (f *fakeTerminal) Read(p []byte) (int, error) { return f.outR.Read(p) }

func (f *fakeTerminal) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input.Write(p)
}

func (f *fakeTerminal) Close() error {
	f.closed.Store(true)
	return f.outR.Close()
}

func (f *fakeTerminal) Resize(size Size) error {
	if f.resizeErr != nil {
		return f.resizeErr
	}
	f.mu.Lock()
	f.size = size
	f.mu.Unlock()
	return nil
}

func (f *fakeTerminal) Size() (Size, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size, nil
}

func (f *fakeTerminal) Pid() int { return f.pid }

func (f *fakeTerminal) Hangup() error {
	f.hangups.Add(1)
	if !f.ignoreHangup {
		f.exit(-1)
	}
	return nil
}

func (f *fakeTerminal) Kill() error {
	f.kills.Add(1)
	if !f.ignoreKill {
		f.exit(-1)
	}
	return nil
}

func (f *fakeTerminal) Wait() (int, error) {
	<-f.exited
	return f.code, nil
}

// exit simulates the shell terminating with code
func (f *fakeTerminal) exit(code int) {
	f.exitOnce.Do(func() {
		f.code = code
		_ = f.outW.Close()
		close(f.exited)
	})
}

// emit plays output from the shell; blocks until the reader takes it
func (f *fakeTerminal) emit(s string) error {
	_, err := f.outW.Write([]byte(s))
	return err
}

func (f *fakeTerminal) written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input.String()
}

type fakeFactory struct {
	mu        sync.Mutex
	terminals []*fakeTerminal
	err       error
	calls     int
	prepare   func(*fakeTerminal)
}

func (f *fakeFactory) Start(cmd Command, size Size) (Terminal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	t := newFakeTerminal(cmd, size)
	if f.prepare != nil {
		f.prepare(t)
	}
	f.terminals = append(f.terminals, t)
	return t, nil
}

func (f *fakeFactory) last() *fakeTerminal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminals[len(f.terminals)-1]
}

func (f *fakeFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFactory) releaseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.terminals {
		t.exit(-1)
	}
}

// recordingSink keeps every published event
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// data concatenates every term-data payload published for id
func (r *recordingSink) data(id string) string {
	var b strings.Builder
	for _, ev := range r.snapshot() {
		if ev.Name != DataEventPrefix+id {
			continue
		}
		b.WriteString(ev.Payload.(DataPayload).Data)
	}
	return b.String()
}

func (r *recordingSink) exitCode(id string) (int, bool) {
	for _, ev := range r.snapshot() {
		if ev.Name == ExitEventPrefix+id {
			return ev.Payload.(ExitPayload).ExitCode, true
		}
	}
	return 0, false
}

func testConfig() config.TerminalConfig {
	cfg := config.Default().Terminal
	cfg.Shell = "/bin/sh"
	cfg.KillGrace = 200 * time.Millisecond
	cfg.Shards = 4
	return cfg
}

// newTestManager builds a started manager that is shut down with the test
func newTestManager(t *testing.T, opts ...Option) (*Manager, *recordingSink) {
	t.Helper()

	sink := &recordingSink{}
	all := append([]Option{WithConfig(testConfig()), WithSink(sink)}, opts...)
	m := NewManager(all...)
	require.NoError(t, m.Start(context.Background()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m, sink
}

func eventually(t *testing.T, cond func() bool, msgAndArgs ...interface{}) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond, msgAndArgs...)
}
