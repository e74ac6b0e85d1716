package runtime

import (
	"context"
	"time"

	"github.com/bobmatnyc/rustbot-sub001/agent"
	"github.com/bobmatnyc/rustbot-sub001/core"
	"github.com/bobmatnyc/rustbot-sub001/wire"
)

// Result is the outcome of one round: the assistant's final text, or the
// error that ended the round.
type Result struct {
	Text string
	Err  error
}

// Submit starts a round for one user turn and returns a channel that yields
// exactly one Result. Rounds are serialized: a Submit issued while another
// round is in flight waits its turn. Canceling ctx aborts the round; results
// from tools that finish after the abort are discarded.
func (r *Runtime) Submit(ctx context.Context, text string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		r.roundMu.Lock()
		defer r.roundMu.Unlock()
		defer r.setState(StateIdle)

		out, err := r.runRound(ctx, text)
		ch <- Result{Text: out, Err: err}
	}()
	return ch
}

// Ask runs a round synchronously.
func (r *Runtime) Ask(ctx context.Context, text string) (string, error) {
	res := <-r.Submit(ctx, text)
	return res.Text, res.Err
}

// runRound executes the round loop: record the user turn, ask the model,
// execute any requested tools, and repeat until the model answers with text.
// The epoch is captured once so that a concurrent Reload cannot change the
// configuration, tool surface or history mid-round.
func (r *Runtime) runRound(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", core.NewError(core.KindProtocol, "empty user input")
	}
	ep := r.epoch.Load()

	if err := ep.history.Append(core.NewUserMessage(text)); err != nil {
		return "", err
	}

	limiter := core.NewModelLimiter(r.opts.MaxModelCalls)
	r.setState(StateAwaitingModelResponse)

	for {
		msg, err := r.callModel(ctx, ep, limiter)
		if err != nil {
			return "", err
		}

		if !msg.HasToolCalls() {
			if msg.IsEmpty() {
				return "", core.NewError(core.KindEmptyContent,
					"model %q returned neither content nor tool calls", ep.primary.Model)
			}
			if err := ep.history.Append(msg); err != nil {
				return "", err
			}
			return msg.Content, nil
		}

		if err := ep.history.Append(msg); err != nil {
			return "", err
		}

		r.setState(StateExecutingTools)
		if err := r.executeToolPhase(ctx, ep, msg.ToolCalls); err != nil {
			return "", err
		}
		r.setState(StateAwaitingFinalResponse)
	}
}

// callModel performs one model request against the captured epoch.
func (r *Runtime) callModel(ctx context.Context, ep *epoch, limiter *core.ModelLimiter) (core.Message, error) {
	if err := limiter.Increment(); err != nil {
		return core.Message{}, err
	}

	req, err := r.codec.Serialize(
		wire.Params{
			Model:       ep.primary.Model,
			MaxTokens:   r.opts.MaxTokens,
			Temperature: r.opts.Temperature,
		},
		ep.history.Snapshot(),
		ep.router.Definitions(),
	)
	if err != nil {
		return core.Message{}, err
	}

	start := time.Now()
	resp, err := r.backend.Complete(ctx, req)
	r.logger.LogModelCall(ep.primary.Model, time.Since(start), err == nil, err)
	if err != nil {
		return core.Message{}, err
	}

	return r.codec.Deserialize(resp)
}

// executeToolPhase runs the requested tool calls sequentially, in request
// order, recording one tool result per call. A failing call does not stop
// its siblings: the failure text becomes that call's result so the model
// can react. An aborted round stops immediately and records nothing further.
func (r *Runtime) executeToolPhase(ctx context.Context, ep *epoch, calls []core.ToolCall) error {
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return core.WrapError(core.KindExecutionFailed, err, "round aborted during tool execution")
		}

		result, err := ep.engine.Execute(ctx, call)
		if err != nil {
			if core.IsKind(err, core.KindRateLimited) || core.IsKind(err, core.KindNetwork) {
				// Backend-level failures inside a delegation are not
				// something the model can repair with a retry of its own.
				return err
			}
			result = "Error: " + err.Error()
		}

		if ctx.Err() != nil {
			return core.WrapError(core.KindExecutionFailed, ctx.Err(), "round aborted during tool execution")
		}
		if err := ep.history.Append(core.NewToolResultMessage(call.ID, result)); err != nil {
			return err
		}
	}
	return nil
}

// RunSpecialist implements tool.SpecialistRunner: it executes one isolated
// model call against a specialist agent. The sub-run sees its own system
// prompt and the delegated input only, and is offered no tools, which caps
// delegation depth at one.
func (r *Runtime) RunSpecialist(ctx context.Context, cfg agent.Config, input string) (string, error) {
	model := cfg.Model
	if model == "" {
		model = agent.DefaultModel
	}

	msgs := []core.Message{
		core.NewSystemMessage(agent.BuildSystemPrompt(r.opts.SharedPrompt, cfg)),
		core.NewUserMessage(input),
	}
	req, err := r.codec.Serialize(
		wire.Params{Model: model, MaxTokens: r.opts.MaxTokens, Temperature: r.opts.Temperature},
		msgs,
		nil,
	)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := r.backend.Complete(ctx, req)
	r.logger.LogModelCall(model, time.Since(start), err == nil, err)
	if err != nil {
		return "", err
	}

	msg, err := r.codec.Deserialize(resp)
	if err != nil {
		return "", err
	}
	if msg.Content == "" {
		return "", core.NewError(core.KindEmptyContent, "specialist %q returned no text", cfg.ID)
	}
	return msg.Content, nil
}
