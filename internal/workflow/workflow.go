// internal/workflow/workflow.go
// Package workflow executes named, ordered interaction sequences against an
// acquired page. Each run is a finite-state machine over the step list;
// pacing between steps is randomized so write actions do not present
// uniform, machine-like timing to the platform.
package workflow

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/quill-cli/api/schemas"
	"github.com/xkilldash9x/quill-cli/internal/config"
)

// Action is the kind of interaction a step performs.
type Action string

const (
	ActionNavigate    Action = "navigate"
	ActionClick       Action = "click"
	ActionType        Action = "type"
	ActionUpload      Action = "upload"
	ActionWaitVisible Action = "wait_visible"
	ActionEvaluate    Action = "evaluate"
	// ActionPause idles for the step timeout. Used where the platform UI
	// needs settling time that no selector can observe.
	ActionPause Action = "pause"
)

// Step is one immutable unit of a workflow. Selector targets the element,
// Input carries the URL, text, or expression depending on the action, and
// Timeout bounds the step. Optional steps may fail without failing the run.
type Step struct {
	Name     string
	Action   Action
	Selector string
	Input    string
	Files    []string
	Timeout  time.Duration
	Optional bool
}

// Workflow is a named ordered step sequence plus a postcondition. The run
// only reports success once Post confirms the intended effect is observable;
// the absence of an error toast is not trusted.
type Workflow struct {
	Name  string
	Steps []Step
	Post  func(ctx context.Context, page schemas.Page) error
}

// Status is the terminal state of a run.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result summarizes a finished run. StepsRun counts steps that actually
// executed, so a caller can tell how far a failed write progressed.
type Result struct {
	OperationID string
	Status      Status
	StepsRun    int
}

// WallCheck reports whether the page is showing a login wall. A positive
// check between steps aborts the run.
type WallCheck func(ctx context.Context, page schemas.Page) (bool, error)

// Engine runs workflows with pacing and mid-run authentication checks.
type Engine struct {
	cfg     config.PacingConfig
	wall    WallCheck
	logger  *zap.Logger
	limiter *rate.Limiter

	// sleep is replaced in tests so pacing does not slow the suite.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine builds an engine. wall may be nil when the platform has no
// login-wall detection. The write limiter enforces a minimum interval
// between runs on top of per-step pacing.
func NewEngine(cfg config.PacingConfig, wall WallCheck, logger *zap.Logger) *Engine {
	var limiter *rate.Limiter
	if cfg.WriteMinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.WriteMinInterval), 1)
	}
	return &Engine{
		cfg:     cfg,
		wall:    wall,
		logger:  logger.Named("workflow"),
		limiter: limiter,
		sleep:   sleepCtx,
	}
}

// Run executes the workflow against page. Cancellation is honored at step
// boundaries only: an in-flight step always completes or times out, so the
// page is never abandoned mid-interaction.
func (e *Engine) Run(ctx context.Context, page schemas.Page, wf Workflow) (Result, error) {
	res := Result{OperationID: uuid.NewString(), Status: StatusRunning}
	log := e.logger.With(zap.String("workflow", wf.Name), zap.String("operation_id", res.OperationID))
	log.Info("Workflow starting.", zap.Int("steps", len(wf.Steps)))

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			res.Status = StatusAborted
			return res, &schemas.WorkflowError{Workflow: wf.Name, StepIndex: 0, Reason: "canceled before start", Err: err}
		}
	}

	for i, step := range wf.Steps {
		if err := ctx.Err(); err != nil {
			res.Status = StatusAborted
			log.Warn("Workflow aborted at step boundary.", zap.Int("step", i))
			return res, &schemas.WorkflowError{Workflow: wf.Name, StepIndex: i, Step: step.Name, Reason: "canceled at step boundary", Err: err}
		}

		if e.wall != nil {
			walled, err := e.wall(ctx, page)
			if err == nil && walled {
				res.Status = StatusAborted
				log.Warn("Login wall detected mid-workflow.", zap.Int("step", i))
				return res, &schemas.WorkflowError{Workflow: wf.Name, StepIndex: i, Step: step.Name, Reason: "login wall appeared", Err: schemas.ErrAuthenticationRequired}
			}
		}

		if err := e.execute(ctx, page, step); err != nil {
			if step.Optional {
				log.Debug("Optional step failed, continuing.", zap.String("step", step.Name), zap.Error(err))
				res.StepsRun++
				continue
			}
			res.Status = StatusFailed
			log.Error("Workflow step failed.", zap.Int("step", i), zap.String("name", step.Name), zap.Error(err))
			return res, &schemas.WorkflowError{Workflow: wf.Name, StepIndex: i, Step: step.Name, Reason: "step did not complete", Err: err}
		}
		res.StepsRun++

		if i < len(wf.Steps)-1 {
			if err := e.pace(ctx); err != nil {
				res.Status = StatusAborted
				return res, &schemas.WorkflowError{Workflow: wf.Name, StepIndex: i + 1, Reason: "canceled during pacing", Err: err}
			}
		}
	}

	if wf.Post != nil {
		if err := wf.Post(ctx, page); err != nil {
			res.Status = StatusFailed
			log.Error("Workflow postcondition not met.", zap.Error(err))
			return res, &schemas.WorkflowError{Workflow: wf.Name, StepIndex: len(wf.Steps), Step: "postcondition", Reason: "effect not observable", Err: err}
		}
	}

	res.Status = StatusSucceeded
	log.Info("Workflow succeeded.", zap.Int("steps_run", res.StepsRun))
	return res, nil
}

// execute runs one step. The step context is detached from caller
// cancellation so an in-flight interaction is never cut off mid-step; the
// step timeout is the only bound.
func (e *Engine) execute(ctx context.Context, page schemas.Page, step Step) error {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	switch step.Action {
	case ActionNavigate:
		return page.Navigate(stepCtx, step.Input)
	case ActionClick:
		return page.Click(stepCtx, step.Selector)
	case ActionType:
		return page.Type(stepCtx, step.Selector, step.Input)
	case ActionUpload:
		return page.SetFiles(stepCtx, step.Selector, step.Files)
	case ActionWaitVisible:
		return page.WaitVisible(stepCtx, step.Selector, timeout)
	case ActionEvaluate:
		var discard any
		return page.Evaluate(stepCtx, step.Input, &discard)
	case ActionPause:
		return e.sleep(stepCtx, timeout)
	default:
		return fmt.Errorf("unknown workflow action %q", step.Action)
	}
}

// pace inserts a randomized inter-step delay within the configured range.
func (e *Engine) pace(ctx context.Context) error {
	lo, hi := e.cfg.StepDelayMin, e.cfg.StepDelayMax
	if hi <= 0 {
		return nil
	}
	d := lo
	if span := hi - lo; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	return e.sleep(ctx, d)
}

// AwaitMarker polls for selector until it appears or timeout elapses. The
// poll loop is the suspension point for human-gated flows such as a QR
// login; cancellation is honored between polls.
func (e *Engine) AwaitMarker(ctx context.Context, page schemas.Page, selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		present, err := page.Exists(ctx, selector)
		if err == nil && present {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("marker %q not observed within %s", selector, timeout)
		}
		if err := e.sleep(ctx, e.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
