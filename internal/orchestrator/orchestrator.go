package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/angelajfisher/call-logger/internal/metrics"
	"github.com/angelajfisher/call-logger/internal/types"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type Normalizer interface {
	Normalize(ctx context.Context, eventType string, object map[string]any) (*types.CanonicalRecord, bool)
}

type Sink interface {
	Deliver(ctx context.Context, record types.CanonicalRecord)
}

type Config struct {
	Normalizer Normalizer
	Sink       Sink
	Logger     glog.Logger
	Metrics    *metrics.Metrics
}

// Orchestrator runs each webhook event through normalization and delivery on its own goroutine,
// detached from the request that carried it
type Orchestrator struct {
	normalizer Normalizer
	sink       Sink
	logger     glog.Logger
	metrics    *metrics.Metrics
	inFlight   *sync.WaitGroup
}

func NewOrchestrator(cfg Config) Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	return Orchestrator{
		normalizer: cfg.Normalizer,
		sink:       cfg.Sink,
		logger:     logger,
		metrics:    cfg.Metrics,
		inFlight:   &sync.WaitGroup{},
	}
}

// Dispatch starts background processing of event and returns its assigned ID without waiting
func (o Orchestrator) Dispatch(event types.WebhookEvent) string {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	o.inFlight.Add(1)
	go func() {
		defer o.inFlight.Done()
		o.process(context.Background(), event)
	}()

	return event.ID
}

// Wait blocks until every dispatched event has finished or ctx is done
func (o Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background events still running: %w", ctx.Err())
	}
}

func (o Orchestrator) process(ctx context.Context, event types.WebhookEvent) {
	defer func() {
		if r := recover(); r != nil {
			o.metrics.BackgroundPanic()
			o.logger.Error("background event task panicked",
				"event_id", event.ID,
				"event", event.Event,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	record, ok := o.normalizer.Normalize(ctx, event.Event, event.Object)
	if !ok {
		o.metrics.EventIgnored()
		o.logger.Debug("ignoring unsupported event", "event_id", event.ID, "event", event.Event)
		return
	}

	o.logger.Info("event normalized",
		"event_id", event.ID,
		"event", event.Event,
		"category", record.Category,
		"actor", record.Actor,
	)
	o.sink.Deliver(ctx, *record)
}
