// Tool Dispatcher.
//
// Information Hiding:
// - Timeout and panic handling hidden
// - Error classification collapsed into a uniform error payload

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Haga4000/Regelebot/internal/metrics"
)

// DefaultTimeout bounds a single tool call when none is configured.
const DefaultTimeout = 15 * time.Second

// Dispatcher routes a named tool call to its implementation. Every call
// yields a Result; failures never escape as Go errors.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout sets the per-call timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(disp *Dispatcher) {
		if logger != nil {
			disp.logger = logger
		}
	}
}

// WithMetrics records every dispatch.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.metrics = m
	}
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		timeout:  DefaultTimeout,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher routes to.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch executes the named tool once.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) Result {
	start := time.Now()

	tool, ok := d.registry.Get(name)
	if !ok {
		d.logger.Warn("unknown tool requested", "tool", name)
		d.metrics.RecordTool(name, time.Since(start), false)
		return ErrorResultf("unknown tool %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result := d.execute(ctx, tool, Args(args))
	elapsed := time.Since(start)
	d.metrics.RecordTool(name, elapsed, !result.IsError())

	if result.IsError() {
		d.logger.Warn("tool failed", "tool", name, "error", result[ErrorKey], "duration_ms", elapsed.Milliseconds())
	} else {
		d.logger.Debug("tool executed", "tool", name, "duration_ms", elapsed.Milliseconds())
	}
	return result
}

func (d *Dispatcher) execute(ctx context.Context, tool Tool, args Args) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked", "tool", tool.Definition().Name, "panic", r)
			result = ErrorResultf("tool %s failed: %v", tool.Definition().Name, r)
		}
	}()

	res, err := tool.Execute(ctx, args)
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return ErrorResultf("tool %s timed out after %s", tool.Definition().Name, d.timeout)
	case err != nil:
		return ErrorResult(err.Error())
	case res == nil:
		return Result{}
	default:
		return res
	}
}

// String describes the dispatcher for logs.
func (d *Dispatcher) String() string {
	return fmt.Sprintf("Dispatcher(%d tools, timeout %s)", d.registry.Len(), d.timeout)
}
