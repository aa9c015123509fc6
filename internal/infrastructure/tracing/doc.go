/*
Package tracing provides lightweight request tracing for the terminal host.

Spans are created per HTTP request and per invoke over the WebSocket
stream, collected on a buffered channel and written to the structured log.
Trace context travels in the X-Trace-ID and X-Span-ID headers.

# Usage

	tracer := tracing.New("termhost", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "pty_spawn")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

Spans are dropped rather than blocking when the 1000-span buffer is full.
*/
package tracing
