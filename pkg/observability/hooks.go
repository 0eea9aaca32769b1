// Package observability provides per-run instrumentation hooks.
//
// Every pipeline execution carries a [Run] with a unique ID; stage,
// cache and HTTP events fire against globally registered hooks so the
// CLI and the serve endpoint can attach timing and logging backends
// without the library packages depending on them.
//
// Hooks are registered once at startup:
//
//	observability.SetStageHooks(observability.NewLogStageHooks(logger))
//
// Library code emits events through the accessors:
//
//	observability.Stages().OnStageStart(ctx, "lower")
//	// ... run the stage ...
//	observability.Stages().OnStageComplete(ctx, "lower", elapsed, err)
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Run identifies one pipeline execution.
type Run struct {
	ID      uuid.UUID
	Started time.Time
}

// NewRun creates a run with a fresh ID.
func NewRun() Run {
	return Run{ID: uuid.New(), Started: time.Now()}
}

// Stage names used by the pipeline, in execution order.
const (
	StageLoad    = "load"
	StageFilter  = "filter"
	StageLower   = "lower"
	StageRewrite = "rewrite"
	StageOrient  = "orient"
	StageExport  = "export"
)

type ctxKey int

const runKey ctxKey = 0

// WithRun attaches a run to the context.
func WithRun(ctx context.Context, r Run) context.Context {
	return context.WithValue(ctx, runKey, r)
}

// RunFromContext returns the run attached to ctx, if any.
func RunFromContext(ctx context.Context) (Run, bool) {
	r, ok := ctx.Value(runKey).(Run)
	return r, ok
}

// StageHooks receives events from pipeline stage execution.
type StageHooks interface {
	// OnRunStart fires once per execution, before the first stage.
	OnRunStart(ctx context.Context, input string)

	// OnStageStart fires before a named stage (load, filter, lower,
	// rewrite, orient, export).
	OnStageStart(ctx context.Context, stage string)

	// OnStageComplete fires after a stage, with its duration and error.
	OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error)

	// OnRunComplete fires once per execution, after the last stage.
	OnRunComplete(ctx context.Context, duration time.Duration, err error)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives events from source document fetches.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	OnError(ctx context.Context, method, host, path string, err error)
}

// NoopStageHooks is a no-op implementation of StageHooks.
type NoopStageHooks struct{}

func (NoopStageHooks) OnRunStart(context.Context, string)                            {}
func (NoopStageHooks) OnStageStart(context.Context, string)                          {}
func (NoopStageHooks) OnStageComplete(context.Context, string, time.Duration, error) {}
func (NoopStageHooks) OnRunComplete(context.Context, time.Duration, error)           {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

var (
	stageHooks StageHooks = NoopStageHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	httpHooks  HTTPHooks  = NoopHTTPHooks{}
	hooksMu    sync.RWMutex
)

// SetStageHooks registers custom stage hooks. Call once at startup.
func SetStageHooks(h StageHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		stageHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. Call once at startup.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks. Call once at startup.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Stages returns the registered stage hooks.
func Stages() StageHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return stageHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults. Primarily for
// tests.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	stageHooks = NoopStageHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
