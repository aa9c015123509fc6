/*
Package resilience provides a circuit breaker for operations that hit the OS.

# Overview

The terminal manager wraps PTY allocation and process start in a Breaker.
When the host runs out of PTYs or the configured shell cannot be executed,
every spawn would otherwise repeat the same failing syscalls; after a run of
consecutive failures the breaker opens and spawns fail fast until the
timeout elapses and a single probe is let through.

# States

  - Closed: calls run; failures are counted.
  - Open: calls are rejected with ErrCircuitOpen.
  - Half-open: up to MaxRequests probes run; one failure reopens,
    MaxRequests successes close.

# Usage

	breaker := resilience.New("spawn", resilience.SpawnSettings(
		func(err error) bool { return errors.Is(err, terminal.ErrProcessSpawn) },
		func(name string, from, to resilience.State) {
			logger.Warn("breaker state", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	))

	err := breaker.Do(func() error {
		return spawn()
	})
*/
package resilience
