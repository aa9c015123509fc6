//go:build !windows

package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// PTYFactory starts commands on real pseudo-terminals
type PTYFactory struct{}

// NewPTYFactory creates a factory backed by the host's PTY devices
func NewPTYFactory() *PTYFactory {
	return &PTYFactory{}
}

// Start allocates a PTY at size and runs cmd on it as a session leader with
// the PTY as its controlling terminal.
func (f *PTYFactory) Start(c Command, size Size) (Terminal, error) {
	opened, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPtyAllocation, err)
	}

	ptmx, err := pollable(opened)
	_ = opened.Close()
	if err != nil {
		_ = tty.Close()
		return nil, fmt.Errorf("%w: %w", ErrPtyAllocation, err)
	}

	if err := setWinsize(ptmx, size); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return nil, fmt.Errorf("%w: set size: %w", ErrPtyAllocation, err)
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	if err := cmd.Start(); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrProcessSpawn, c.Path, err)
	}

	// The child holds its own copy; ours would keep the PTY from reporting EOF
	_ = tty.Close()

	return &ptyTerminal{ptmx: ptmx, cmd: cmd}, nil
}

// pollable returns a non-blocking duplicate of f registered with the
// runtime poller. pty.Open hands out a blocking master, and closing a
// blocking file does not interrupt a Read parked on it.
func pollable(f *os.File) (*os.File, error) {
	var (
		fd     int
		dupErr error
	)
	raw, err := f.SyscallConn()
	if err != nil {
		return nil, err
	}
	err = raw.Control(func(orig uintptr) {
		fd, dupErr = unix.FcntlInt(orig, unix.F_DUPFD_CLOEXEC, 0)
	})
	if err == nil {
		err = dupErr
	}
	if err != nil {
		return nil, fmt.Errorf("dup master: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("set nonblock: %w", err)
	}
	return os.NewFile(uintptr(fd), f.Name()), nil
}

// setWinsize goes through SyscallConn so the master stays non-blocking;
// Fd() would switch it back.
func setWinsize(f *os.File, size Size) error {
	raw, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var ioctlErr error
	err = raw.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetWinsize(int(fd), unix.TIOCSWINSZ, &unix.Winsize{
			Row: size.Rows,
			Col: size.Cols,
		})
	})
	if err != nil {
		return err
	}
	return ioctlErr
}

func getWinsize(f *os.File) (Size, error) {
	raw, err := f.SyscallConn()
	if err != nil {
		return Size{}, err
	}
	var (
		ws       *unix.Winsize
		ioctlErr error
	)
	err = raw.Control(func(fd uintptr) {
		ws, ioctlErr = unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	})
	if err != nil {
		return Size{}, err
	}
	if ioctlErr != nil {
		return Size{}, ioctlErr
	}
	return Size{Cols: ws.Col, Rows: ws.Row}, nil
}

type ptyTerminal struct {
	ptmx      *os.File
	cmd       *exec.Cmd
	closeOnce sync.Once
	closeErr  error

	// Wait may run from the reader and from a kill that gave up on it
	waitOnce sync.Once
	waitCode int
	waitErr  error
}

func (t *ptyTerminal) Read(p []byte) (int, error) {
	n, err := t.ptmx.Read(p)
	// Linux reports a hung-up subordinate side as EIO
	if err != nil && errors.Is(err, syscall.EIO) {
		err = io.EOF
	}
	return n, err
}

func (t *ptyTerminal) Write(p []byte) (int, error) {
	return t.ptmx.Write(p)
}

func (t *ptyTerminal) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.ptmx.Close()
	})
	return t.closeErr
}

func (t *ptyTerminal) Resize(size Size) error {
	return setWinsize(t.ptmx, size)
}

func (t *ptyTerminal) Size() (Size, error) {
	return getWinsize(t.ptmx)
}

func (t *ptyTerminal) Pid() int {
	return t.cmd.Process.Pid
}

func (t *ptyTerminal) Hangup() error {
	return t.signalGroup(unix.SIGHUP)
}

func (t *ptyTerminal) Kill() error {
	return t.signalGroup(unix.SIGKILL)
}

func (t *ptyTerminal) signalGroup(sig unix.Signal) error {
	// Setsid makes the child a group leader, so pgid == pid
	err := unix.Kill(-t.cmd.Process.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func (t *ptyTerminal) Wait() (int, error) {
	t.waitOnce.Do(func() {
		err := t.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			t.waitCode, t.waitErr = -1, err
			return
		}
		t.waitCode = t.cmd.ProcessState.ExitCode()
	})
	return t.waitCode, t.waitErr
}
