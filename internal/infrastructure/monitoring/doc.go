/*
Package monitoring provides Prometheus metrics for the terminal host.

# Overview

Metrics cover the HTTP surface, the websocket event transport and the PTY
session lifecycle (spawns, kills, reader exits, bytes read, event queue
depth). Every Metrics value owns its registry, so several can coexist in
one process (tests build one per case).

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", monitoring.Handler(metrics))

	metrics.RecordSpawn("success", time.Since(start))
*/
package monitoring
