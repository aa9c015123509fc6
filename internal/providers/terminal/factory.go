package terminal

import "io"

// Command describes the process started on the subordinate side of a PTY
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Terminal is the master side of a PTY together with the child attached to
// it. Read returns io.EOF once the child side is gone.
type Terminal interface {
	io.ReadWriteCloser
	Resize(size Size) error
	Size() (Size, error)
	Pid() int
	// Hangup sends SIGHUP to the child's process group
	Hangup() error
	// Kill sends SIGKILL to the child's process group
	Kill() error
	// Wait reaps the child and returns its exit code (-1 if signalled).
	// Later calls return the first result.
	Wait() (int, error)
}

// Factory allocates a PTY and starts a command on it
type Factory interface {
	Start(cmd Command, size Size) (Terminal, error)
}
