// Package terminal manages pseudo-terminal sessions for an embedded
// terminal front-end.
//
// Every session is keyed by an id chosen by the caller and runs a shell on
// its own PTY. A reader goroutine per session forwards output in chunks of
// at most ChunkSize bytes as "term-data:<id>" events with payload
// {id, data}; data is always valid UTF-8 (invalid bytes are replaced, a
// sequence split across reads is completed by the next chunk). When a shell
// exits on its own a single "term-exit:<id>" event follows.
//
// Architecture:
//   - Registry: sharded map of live sessions (xxhash picks the shard)
//   - Manager: spawn, write, resize and kill; spawns and kills of the same
//     id are serialized, different ids proceed independently
//   - Dispatcher: one goroutine draining a bounded queue into a Sink, so
//     events of one session are published in order
//   - Factory: PTY allocation (creack/pty on unix), swappable in tests
//
// Kill is two-phase: the shell's process group gets SIGHUP and the master
// side is closed; if the reader has not finished after the grace period
// the group gets SIGKILL. Killing an unknown id is a no-op.
//
// Example Usage:
//
//	manager := terminal.NewManager(
//	    terminal.WithConfig(cfg.Terminal),
//	    terminal.WithSink(hub),
//	    terminal.WithLogger(logger),
//	)
//	_ = manager.Start(ctx)
//	defer manager.Shutdown(context.Background())
//
//	info, err := manager.Spawn(ctx, "tab-1", 80, 24)
//	_ = manager.Write("tab-1", "ls -la\n")
//	_ = manager.Resize("tab-1", 132, 43)
//	_ = manager.Kill("tab-1")
//
// Commands (Provider):
//   - pty_spawn, pty_write, pty_resize, pty_kill
//   - pty_list, pty_get, pty_scrollback
package terminal
