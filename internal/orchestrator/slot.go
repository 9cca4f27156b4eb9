package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"modelarena/internal/models"
	"modelarena/internal/providers"
)

// slotTask runs one backend slot through its state machine:
//
//	Idle -> Streaming -> {Completed | Failed}
//
// All mutable state is owned exclusively by the slot goroutine. The final
// SlotResult is written before the terminal event is sent, so the aggregator
// may read it once it has received that event (the channel send is the
// synchronization point).
type slotTask struct {
	o        *Orchestrator
	id       models.SlotID
	desc     models.ModelDescriptor
	provider providers.Provider
	prompt   string

	text  strings.Builder
	usage models.TokenUsage
	cost  float64
	res   models.SlotResult
}

func newSlotTask(o *Orchestrator, binding slotBinding, prompt string) *slotTask {
	return &slotTask{
		o:        o,
		id:       binding.id,
		desc:     binding.desc,
		provider: binding.provider,
		prompt:   prompt,
	}
}

// result returns the slot's terminal state. Valid only after the slot's
// terminal event has been received.
func (t *slotTask) result() models.SlotResult {
	return t.res
}

type chunkOrErr struct {
	chunk providers.StreamChunk
	err   error
}

// run drives the slot until a terminal state, emitting its ordered event
// sequence on out. out is closed when the slot is done.
func (t *slotTask) run(ctx context.Context, out chan<- models.StreamEvent) {
	defer close(out)

	// Idle -> Streaming: the start event carries zero token/cost state.
	out <- t.event(models.EventStart, "", "", false)

	// Input tokens are estimated once from the prompt and held fixed;
	// exact provider-reported usage replaces the estimate on completion.
	t.usage.Input = t.o.accountant.EstimateTokens(t.prompt, t.desc.ID)
	t.refreshCost()

	stream, err := t.provider.StreamCompletion(ctx, providers.CompletionRequest{
		Model:     t.desc.ID,
		Prompt:    t.prompt,
		MaxTokens: t.o.config.MaxTokens,
	})
	if err != nil {
		t.fail(out, fmt.Sprintf("failed to start %s stream: %v", t.desc.Provider, err))
		return
	}
	defer stream.Close()

	quit := make(chan struct{})
	defer close(quit)

	chunks := make(chan chunkOrErr)
	go receiveChunks(stream, chunks, quit)

	idle := time.NewTimer(t.o.config.SlotIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				t.fail(out, "backend stream ended unexpectedly")
				return
			}
			if c.err != nil {
				t.fail(out, c.err.Error())
				return
			}
			if c.chunk.Done {
				t.complete(out, c.chunk.Usage)
				return
			}
			if c.chunk.Delta != "" {
				t.advance(out, c.chunk.Delta)
			}

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(t.o.config.SlotIdleTimeout)

		case <-idle.C:
			t.fail(out, fmt.Sprintf("no data from backend for %s", t.o.config.SlotIdleTimeout))
			return

		case <-ctx.Done():
			t.fail(out, cancelReason(ctx))
			return
		}
	}
}

// receiveChunks pumps stream increments into a channel so the slot loop can
// select over them, the idle timer and cancellation. quit unblocks pending
// sends when the slot exits early.
func receiveChunks(stream providers.Stream, out chan<- chunkOrErr, quit <-chan struct{}) {
	defer close(out)
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case out <- chunkOrErr{err: err}:
			case <-quit:
			}
			return
		}

		select {
		case out <- chunkOrErr{chunk: chunk}:
		case <-quit:
			return
		}

		if chunk.Done {
			return
		}
	}
}

// advance is the Streaming -> Streaming transition: append the increment,
// re-estimate output tokens, recompute live cost, emit a token event.
func (t *slotTask) advance(out chan<- models.StreamEvent, delta string) {
	t.text.WriteString(delta)
	t.usage.Output = t.o.accountant.EstimateTokens(t.text.String(), t.desc.ID)
	t.refreshCost()
	out <- t.event(models.EventToken, delta, "", false)
}

// complete is the Streaming -> Completed transition.
func (t *slotTask) complete(out chan<- models.StreamEvent, exact *models.TokenUsage) {
	if exact != nil && exact.Total() > 0 {
		t.usage = *exact
	}
	t.refreshCost()

	t.res = models.SlotResult{
		ModelID: t.desc.ID,
		Text:    t.text.String(),
		Usage:   t.usage,
		Cost:    t.cost,
	}
	out <- t.event(models.EventComplete, "", "", true)
}

// fail is the {Idle,Streaming} -> Failed transition. The error event still
// carries the best-known token/cost state.
func (t *slotTask) fail(out chan<- models.StreamEvent, reason string) {
	t.res = models.SlotResult{
		ModelID: t.desc.ID,
		Text:    t.text.String(),
		Usage:   t.usage,
		Cost:    t.cost,
		Err:     reason,
	}
	out <- t.event(models.EventError, "", reason, true)
}

func (t *slotTask) refreshCost() {
	if cost, err := t.o.accountant.LiveCost(t.usage.Input, t.usage.Output, t.desc.ID); err == nil {
		t.cost = cost
	}
}

func (t *slotTask) event(typ models.EventType, delta, errMsg string, complete bool) models.StreamEvent {
	return models.StreamEvent{
		Type: typ,
		Slot: t.id,
		Data: models.EventData{
			Model:      t.desc.ID,
			Delta:      delta,
			Tokens:     models.NewTokenView(t.usage),
			Cost:       t.cost,
			IsComplete: complete,
			Error:      errMsg,
		},
	}
}

// cancelReason distinguishes a consumer disconnect from budget expiry.
func cancelReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "streaming budget exceeded"
	}
	return "client disconnected"
}
