package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"modelarena/internal/models"
	"modelarena/internal/pricing"
	"modelarena/internal/providers"
	"modelarena/internal/spend"
	"modelarena/internal/utils"
)

var (
	// ErrEmptyPrompt is returned when a request carries a blank prompt
	ErrEmptyPrompt = errors.New("prompt must not be empty")
)

// HistorySink receives finalized comparison records for persistence. A sink
// failure is the caller's to log; it never affects the delivered stream.
type HistorySink interface {
	Enqueue(ctx context.Context, rec *models.ComparisonRecord) error
}

// Config holds orchestrator tuning knobs.
type Config struct {
	// EventBuffer is the outward channel capacity per request. When the
	// buffer is full, emission blocks until the consumer catches up;
	// events are never dropped.
	EventBuffer int

	// RequestBudget bounds the total streaming duration of one comparison.
	RequestBudget time.Duration

	// SlotIdleTimeout bounds the gap between two increments from one
	// backend, so an unresponsive backend cannot stall its slot forever.
	SlotIdleTimeout time.Duration

	// MaxTokens is forwarded to providers; 0 means provider default.
	MaxTokens int
}

// DefaultConfig returns default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		EventBuffer:     64,
		RequestBudget:   5 * time.Minute,
		SlotIdleTimeout: 60 * time.Second,
	}
}

// Orchestrator fans one comparison request out to two backend slots, merges
// their event streams into a single tagged sequence, and commits the joint
// outcome to the history sink exactly once.
type Orchestrator struct {
	catalog    *pricing.Catalog
	accountant *pricing.Accountant
	registry   *providers.Registry
	history    HistorySink
	spend      spend.Tracker
	config     Config
	logger     *utils.Logger
}

// New creates an orchestrator over an immutable catalog and provider registry.
func New(
	catalog *pricing.Catalog,
	accountant *pricing.Accountant,
	registry *providers.Registry,
	history HistorySink,
	spendTracker spend.Tracker,
	config Config,
) *Orchestrator {
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultConfig().EventBuffer
	}
	if config.RequestBudget <= 0 {
		config.RequestBudget = DefaultConfig().RequestBudget
	}
	if config.SlotIdleTimeout <= 0 {
		config.SlotIdleTimeout = DefaultConfig().SlotIdleTimeout
	}

	return &Orchestrator{
		catalog:    catalog,
		accountant: accountant,
		registry:   registry,
		history:    history,
		spend:      spendTracker,
		config:     config,
		logger:     utils.NewLogger("orchestrator", utils.Info),
	}
}

// ValidateRequest rejects malformed requests before any slot task exists.
func (o *Orchestrator) ValidateRequest(req models.ComparisonRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if _, err := o.catalog.Lookup(req.ModelID1); err != nil {
		return err
	}
	if _, err := o.catalog.Lookup(req.ModelID2); err != nil {
		return err
	}
	return nil
}

// Run validates a request and starts its comparison. The returned channel
// carries the merged event sequence and is closed once both slots are
// terminal and the outcome has been handed to the history sink.
//
// Per-slot event order is total (one start, zero or more token, exactly one
// terminal event); cross-slot order is unspecified. Cancelling ctx (consumer
// disconnect) cancels both slots; the partial outcome is still committed.
func (o *Orchestrator) Run(ctx context.Context, req models.ComparisonRequest) (<-chan models.StreamEvent, error) {
	if err := o.ValidateRequest(req); err != nil {
		return nil, err
	}

	descA, _ := o.catalog.Lookup(req.ModelID1)
	descB, _ := o.catalog.Lookup(req.ModelID2)

	providerA, err := o.registry.ForModel(descA)
	if err != nil {
		return nil, err
	}
	providerB, err := o.registry.ForModel(descB)
	if err != nil {
		return nil, err
	}

	out := make(chan models.StreamEvent, o.config.EventBuffer)

	bindingA := slotBinding{id: models.SlotA, desc: descA, provider: providerA}
	bindingB := slotBinding{id: models.SlotB, desc: descB, provider: providerB}

	go o.aggregate(ctx, req, bindingA, bindingB, out)

	return out, nil
}

// slotBinding ties a slot id to its resolved model and provider.
type slotBinding struct {
	id       models.SlotID
	desc     models.ModelDescriptor
	provider providers.Provider
}

// aggregate is the fan-in loop: it forwards slot events outward as they
// arrive and commits the outcome once both slots are observed terminal.
func (o *Orchestrator) aggregate(
	ctx context.Context,
	req models.ComparisonRequest,
	bindingA, bindingB slotBinding,
	out chan<- models.StreamEvent,
) {
	defer close(out)

	runCtx, cancel := context.WithTimeout(ctx, o.config.RequestBudget)
	defer cancel()

	chanA := make(chan models.StreamEvent)
	chanB := make(chan models.StreamEvent)

	taskA := newSlotTask(o, bindingA, req.Prompt)
	taskB := newSlotTask(o, bindingB, req.Prompt)

	go taskA.run(runCtx, chanA)
	go taskB.run(runCtx, chanB)

	var terminalA, terminalB, committed, delivering bool
	delivering = true
	openA, openB := true, true

	for openA || openB {
		var ev models.StreamEvent
		var ok bool

		select {
		case ev, ok = <-chanA:
			if !ok {
				openA = false
				continue
			}
			if ev.Terminal() {
				terminalA = true
			}
		case ev, ok = <-chanB:
			if !ok {
				openB = false
				continue
			}
			if ev.Terminal() {
				terminalB = true
			}
		}

		if delivering {
			select {
			case out <- ev:
			case <-ctx.Done():
				// Consumer is gone; keep draining so both slots can
				// reach a terminal state and the outcome commits.
				delivering = false
			}
		}

		// Joint completion: both slots terminal, commit at most once even
		// if a duplicate terminal signal were ever observed.
		if terminalA && terminalB && !committed {
			committed = true
			o.commit(req, taskA.result(), taskB.result())
		}
	}

	// Both slot channels closed without both terminal events would mean a
	// slot broke its contract; commit whatever state exists rather than
	// losing the record.
	if !committed {
		o.commit(req, taskA.result(), taskB.result())
	}
}

// commit freezes the joint outcome into a record and hands it to the history
// sink. Storage failures are logged and swallowed: the stream the consumer
// saw is already delivered and cannot be retracted.
func (o *Orchestrator) commit(req models.ComparisonRequest, resA, resB models.SlotResult) {
	outcome := models.ComparisonOutcome{
		Prompt: req.Prompt,
		SlotA:  resA,
		SlotB:  resB,
	}

	rec := models.NewComparisonRecord(outcome)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.history.Enqueue(ctx, rec); err != nil {
		o.logger.Error("Failed to enqueue comparison record", "id", rec.ID, "error", err)
	}

	total := 0.0
	if !resA.Failed() {
		total += resA.Cost
	}
	if !resB.Failed() {
		total += resB.Cost
	}
	if total > 0 && o.spend != nil {
		if err := o.spend.AddUsage(ctx, total); err != nil {
			o.logger.Warn("Failed to record spend", "error", err)
		}
	}

	o.logger.Info("Comparison committed",
		"id", rec.ID,
		"model1", req.ModelID1,
		"model2", req.ModelID2,
		"failed_a", resA.Failed(),
		"failed_b", resB.Failed(),
		"cost_usd", total,
	)
}
