// Package inference runs the out-of-process scorer.
//
// One call to Invoke starts one child process as
//
//	<command> <script> <json payload>
//
// and turns its exit status and standard output into either a Result or an
// *Error. The scorer must exit 0 and print a single JSON object with score,
// probability and riskLevel, or with an error field.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/okian/pcosrisk/pkg/logger"
)

const (
	defaultScript    = "backend/ml/predict.py"
	defaultTimeout   = 30 * time.Second
	defaultWaitDelay = 2 * time.Second
)

// Result is a prediction as reported by the scorer. Fields are passed
// through; ranges are not checked and the risk level is not recomputed.
type Result struct {
	Score       float64 `json:"score"`
	Probability float64 `json:"probability"`
	RiskLevel   string  `json:"riskLevel"`
}

var errNullOutput = errors.New("scorer printed null, want a JSON object")

// scorerOutput is the stdout contract of the scorer.
type scorerOutput struct {
	Score       float64 `json:"score"`
	Probability float64 `json:"probability"`
	RiskLevel   string  `json:"riskLevel"`
	Error       any     `json:"error"`
}

// Invoker launches scorer processes. It holds configuration only, so one
// Invoker may serve any number of concurrent calls.
type Invoker struct {
	command   string
	script    string
	timeout   time.Duration
	waitDelay time.Duration
	env       []string
	logger    logger.Logger
	hooks     Hooks
}

// Hooks observe an invocation; any of them may be nil. Started and Exited
// fire only for processes that were actually launched, Finished fires once
// per Invoke call.
type Hooks struct {
	Started  func()
	Exited   func()
	Finished func(outcome string, elapsed time.Duration)
}

// DefaultCommand returns the Python launcher name for the running platform.
func DefaultCommand() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

// New constructs an Invoker.
func New(opts ...Option) *Invoker {
	inv := &Invoker{
		command:   DefaultCommand(),
		script:    defaultScript,
		timeout:   defaultTimeout,
		waitDelay: defaultWaitDelay,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Command returns the configured executable and script.
func (i *Invoker) Command() (string, string) {
	return i.command, i.script
}

// Check reports whether the scorer executable can be resolved. It does not
// start a process.
func (i *Invoker) Check() error {
	if _, err := exec.LookPath(i.command); err != nil {
		return notFoundError(i.command, err)
	}
	return nil
}

// Invoke runs one scoring attempt for payload and returns its only outcome.
// The payload is not validated; it is JSON-encoded and forwarded as is.
func (i *Invoker) Invoke(ctx context.Context, payload any) (Result, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Result{}, &Error{
			Kind:     ErrEncodePayload,
			Op:       "inference.encode",
			Msg:      fmt.Sprintf("failed to encode payload: %v", err),
			ExitCode: -1,
			Err:      err,
		}
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, i.command, i.script, string(raw))
	cmd.WaitDelay = i.waitDelay
	if len(i.env) > 0 {
		cmd.Env = append(cmd.Environ(), i.env...)
	}
	// exec copies each pipe into its buffer on its own goroutine and Wait
	// returns only after both copies finish, so exit handling always sees
	// the complete output.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		outErr := i.startError(ctx, err)
		i.finish(ctx, start, outErr)
		return Result{}, outErr
	}
	if i.hooks.Started != nil {
		i.hooks.Started()
	}
	waitErr := cmd.Wait()
	if i.hooks.Exited != nil {
		i.hooks.Exited()
	}

	res, outErr := i.complete(ctx, waitErr, stdout.String(), stderr.String())
	i.finish(ctx, start, outErr)
	return res, outErr
}

func (i *Invoker) startError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		kind := ctxErr
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			kind = ErrScorerTimeout
		}
		return timeoutError(kind, ctxErr, "", "")
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return notFoundError(i.command, err)
	}
	return launchError(err)
}

// complete maps the result of Wait and the collected streams to an outcome.
func (i *Invoker) complete(ctx context.Context, waitErr error, stdout, stderr string) (Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil && waitErr != nil {
		kind := ctxErr
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			kind = ErrScorerTimeout
		}
		return Result{}, timeoutError(kind, ctxErr, stdout, stderr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return Result{}, processError(exitErr.ExitCode(), stdout, stderr)
		}
		// WaitDelay expiry or an I/O failure on the pipes after a clean exit.
		return Result{}, &Error{
			Kind:   ErrScorerProcess,
			Op:     "inference.wait",
			Msg:    fmt.Sprintf("scorer process failed: %v", waitErr),
			Stdout: stdout,
			Stderr: stderr,
			Err:    waitErr,
		}
	}

	trimmed := strings.TrimSpace(stdout)
	if trimmed == "null" {
		return Result{}, parseError(errNullOutput, stdout, stderr)
	}
	var out scorerOutput
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return Result{}, parseError(err, stdout, stderr)
	}
	if msg, ok := reportedMessage(out.Error); ok {
		return Result{}, reportedError(msg, stdout, stderr)
	}
	return Result{Score: out.Score, Probability: out.Probability, RiskLevel: out.RiskLevel}, nil
}

func (i *Invoker) finish(ctx context.Context, start time.Time, err error) {
	elapsed := time.Since(start)
	outcome := Outcome(err)
	if i.hooks.Finished != nil {
		i.hooks.Finished(outcome, elapsed)
	}
	if i.logger != nil {
		i.logger.Debug(ctx, "scorer finished",
			logger.String("outcome", outcome),
			logger.Duration("elapsed", elapsed),
		)
	}
}

// reportedMessage returns the scorer's error field when it is set to
// anything other than null, false, 0 or "".
func reportedMessage(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case bool:
		return "true", t
	case float64:
		return fmt.Sprint(t), t != 0
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t), true
		}
		return string(b), true
	}
}
