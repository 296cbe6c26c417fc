package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/shandysiswandi/ayurclinic/internal/pkg/stacktrace"
)

// message adapts a broker delivery. ack and nack run at most once in total.
type message struct {
	id    string
	body  []byte
	attrs map[string]string
	ack   func(ctx context.Context) error
	nack  func(ctx context.Context) error

	responded atomic.Bool
}

func (m *message) ID() string                    { return m.id }
func (m *message) Body() []byte                  { return m.body }
func (m *message) Attributes() map[string]string { return m.attrs }

func (m *message) Ack(ctx context.Context) error {
	return m.respond(ctx, m.ack)
}

func (m *message) Nack(ctx context.Context) error {
	return m.respond(ctx, m.nack)
}

func (m *message) respond(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.responded.Swap(true) || fn == nil {
		return nil
	}
	return fn(ctx)
}

// deliver runs handler with panic recovery and applies auto-ack when the
// handler did not respond itself.
func deliver(ctx context.Context, kind string, handler Handler, m *message, autoAck bool) error {
	herr := callHandler(ctx, kind, handler, m)
	if !autoAck || m.responded.Load() {
		return herr
	}

	if herr == nil {
		return m.Ack(ctx)
	}

	if err := m.Nack(ctx); err != nil {
		slog.WarnContext(ctx, "failed to nack message", "kind", kind, "id", m.id, "error", err)
	}
	return herr
}

func callHandler(ctx context.Context, kind string, handler Handler, m *message) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", string(stack))
			}
			err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
		}
	}()

	return handler(ctx, m)
}

func cloneAttrs(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
