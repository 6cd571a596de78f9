package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/adapters/headless"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/model"
	"github.com/aretw0/tapestry/pkg/ports"
)

// ErrExpectation is returned when a step's Expect block does not hold.
var ErrExpectation = errors.New("expectation failed")

// DefaultAwaitTimeout bounds an await step.
const DefaultAwaitTimeout = 30 * time.Second

// Result records one replayed step.
type Result struct {
	Index    int    `json:"index"`
	Action   string `json:"action"`
	Target   string `json:"target,omitempty"`
	Progress string `json:"progress,omitempty"`
	Click    string `json:"click,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	Mode     string `json:"mode"`
	History  int    `json:"history"`
	Err      string `json:"error,omitempty"`
}

// Report is the outcome of a replay.
type Report struct {
	Name    string          `json:"name,omitempty"`
	Steps   []Result        `json:"steps"`
	Final   tapestry.Status `json:"final"`
	Failed  bool            `json:"failed"`
	Elapsed time.Duration   `json:"elapsed"`
}

// Runner replays scripts.
type Runner struct {
	logger       *slog.Logger
	awaitTimeout time.Duration
	opts         []tapestry.Option
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithAwaitTimeout bounds each await step.
func WithAwaitTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.awaitTimeout = d
	}
}

// WithEngineOptions adds options to every engine the runner builds.
func WithEngineOptions(opts ...tapestry.Option) Option {
	return func(r *Runner) {
		r.opts = append(r.opts, opts...)
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:       logging.NewNop(),
		awaitTimeout: DefaultAwaitTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine builds the network s describes and an inline engine over it.
func (r *Runner) Engine(s *Script) (*tapestry.Engine, error) {
	spec, err := s.Spec()
	if err != nil {
		return nil, err
	}
	net, err := model.Build(spec)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}
	if s.Model != "" {
		if err := net.SetCurrent(s.Model); err != nil {
			return nil, err
		}
	}
	answers := make([]domain.Answer, 0, len(s.Answers))
	for _, a := range s.Answers {
		answers = append(answers, domain.Answer{Choice: domain.ParseAnswer(a)})
	}
	opts := []tapestry.Option{
		tapestry.WithLogger(r.logger),
		tapestry.WithControls(headless.NewControls()),
		tapestry.WithDialogs(headless.NewDialogs(domain.Answer{Choice: domain.AnswerOK}, answers...)),
		tapestry.WithHeadless(s.Headless),
	}
	return tapestry.New(net, append(opts, r.opts...)...)
}

// Run builds an engine for s and replays it.
func (r *Runner) Run(ctx context.Context, s *Script) (*Report, error) {
	eng, err := r.Engine(s)
	if err != nil {
		return nil, err
	}
	defer eng.Close()
	return r.Replay(ctx, eng, s)
}

// Replay runs the steps of s on eng, stopping at the first failure. The
// report is returned even when a step fails.
func (r *Runner) Replay(ctx context.Context, eng *tapestry.Engine, s *Script) (*Report, error) {
	start := time.Now()
	rep := &Report{Name: s.Name}
	defer func() {
		rep.Final = eng.Status()
		rep.Elapsed = time.Since(start)
	}()

	for i, st := range s.Steps {
		res, err := r.step(ctx, eng, st)
		res.Index = i + 1
		res.Mode = eng.Mode().String()
		res.History = len(eng.Log().History())
		if err != nil {
			res.Err = err.Error()
		}
		rep.Steps = append(rep.Steps, res)
		r.logger.Debug("Script step", "step", res.Index, "action", res.Action, "progress", res.Progress, "err", err)

		if cerr := check(st.Expect, res, err); cerr != nil {
			rep.Failed = true
			return rep, fmt.Errorf("step %d (%s): %w", res.Index, res.Action, cerr)
		}
	}
	return rep, nil
}

func (r *Runner) step(ctx context.Context, eng *tapestry.Engine, st Step) (Result, error) {
	res := Result{Action: st.Action()}
	var env flow.Envelope
	var err error
	switch res.Action {
	case "flow":
		res.Target = st.Flow
		env, err = eng.Invoke(ctx, st.Flow)
	case "preload":
		res.Target = st.Flow
		env, err = eng.Preload(ctx, st.Flow, st.Preload)
	case "click":
		var click domain.ClickResult
		click, err = eng.Click(ctx, domain.Point{X: st.Click.X, Y: st.Click.Y}, st.Click.Shifted)
		res.Click = click.String()
		return res, err
	case "motion":
		return res, eng.Motion(ctx, domain.Point{X: st.Motion.X, Y: st.Motion.Y})
	case "select":
		env, err = eng.Select(ctx, *st.Select, false)
	case "answer":
		env, err = eng.Answer(ctx, domain.Answer{Choice: domain.ParseAnswer(st.Answer.Choice), Values: st.Answer.Values})
	case "cancel":
		mask, _ := parseMask(*st.Cancel)
		eng.CancelJob()
		eng.CancelMode(mask)
		return res, nil
	case "undo":
		entry, uerr := eng.Undo(ctx)
		res.Target = entry.Label
		return res, uerr
	case "redo":
		entry, rerr := eng.Redo(ctx)
		res.Target = entry.Label
		return res, rerr
	case "await":
		actx, cancel := context.WithTimeout(ctx, r.awaitTimeout)
		defer cancel()
		job, aerr := eng.Await(actx)
		if job != nil {
			res.Target = job.Name()
			res.Outcome = job.Outcome()
		}
		return res, aerr
	default:
		return res, fmt.Errorf("%w: step without action", ErrInvalidScript)
	}
	res.Progress = env.Progress.String()
	if env.Click != domain.ClickNone {
		res.Click = env.Click.String()
	}
	return res, err
}

func check(exp *Expect, res Result, err error) error {
	if exp == nil {
		return err
	}
	if exp.Error != "" {
		if err == nil {
			return fmt.Errorf("%w: want error containing %q, got none", ErrExpectation, exp.Error)
		}
		if !strings.Contains(err.Error(), exp.Error) {
			return fmt.Errorf("%w: want error containing %q, got %q", ErrExpectation, exp.Error, err)
		}
	} else if err != nil {
		return err
	}

	var mismatches []string
	field := func(name, want, got string) {
		if want != "" && want != got {
			mismatches = append(mismatches, fmt.Sprintf("%s: want %q, got %q", name, want, got))
		}
	}
	field("progress", exp.Progress, res.Progress)
	field("click", exp.Click, res.Click)
	field("mode", exp.Mode, res.Mode)
	field("outcome", exp.Outcome, res.Outcome)
	if exp.History != nil && *exp.History != res.History {
		mismatches = append(mismatches, fmt.Sprintf("history: want %d, got %d", *exp.History, res.History))
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%w: %s", ErrExpectation, strings.Join(mismatches, "; "))
	}
	return nil
}

func parseMask(s string) (ports.CancelMask, error) {
	return ports.ParseCancelMask(s)
}
