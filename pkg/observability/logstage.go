package observability

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// LogStageHooks logs stage events at debug level, tagged with the run
// ID from the context.
type LogStageHooks struct {
	logger *log.Logger
}

// NewLogStageHooks creates stage hooks that write to logger.
func NewLogStageHooks(logger *log.Logger) *LogStageHooks {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &LogStageHooks{logger: logger}
}

func (h *LogStageHooks) with(ctx context.Context) *log.Logger {
	if r, ok := RunFromContext(ctx); ok {
		return h.logger.With("run", r.ID.String())
	}
	return h.logger
}

func (h *LogStageHooks) OnRunStart(ctx context.Context, input string) {
	h.with(ctx).Debug("run started", "input", input)
}

func (h *LogStageHooks) OnStageStart(ctx context.Context, stage string) {
	h.with(ctx).Debug("stage started", "stage", stage)
}

func (h *LogStageHooks) OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error) {
	l := h.with(ctx)
	if err != nil {
		l.Debug("stage failed", "stage", stage, "duration", duration, "err", err)
		return
	}
	l.Debug("stage complete", "stage", stage, "duration", duration)
}

func (h *LogStageHooks) OnRunComplete(ctx context.Context, duration time.Duration, err error) {
	l := h.with(ctx)
	if err != nil {
		l.Debug("run failed", "duration", duration, "err", err)
		return
	}
	l.Debug("run complete", "duration", duration)
}

var _ StageHooks = (*LogStageHooks)(nil)
