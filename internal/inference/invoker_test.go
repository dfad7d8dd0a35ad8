package inference_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/pcosrisk/internal/inference"
	. "github.com/smartystreets/goconvey/convey"
)

const highRisk = `{"score":62,"probability":0.71,"riskLevel":"High Risk"}`

var scenarioPayload = map[string]any{
	"age":               28,
	"weight":            65,
	"height":            165,
	"cycle":             "Irregular",
	"cycleDuration":     45,
	"symptoms":          []string{"acne"},
	"exerciseFrequency": "Low",
	"dietType":          "Balanced",
	"sleepHours":        6,
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// writeScript stores a shell scorer in dir and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func shInvoker(script string, opts ...inference.Option) *inference.Invoker {
	base := []inference.Option{
		inference.WithCommand("sh"),
		inference.WithScript(script),
		inference.WithTimeout(10 * time.Second),
	}
	return inference.New(append(base, opts...)...)
}

func TestInvoke_Success(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	ctx := context.Background()

	Convey("Given a scorer that prints a prediction and exits 0", t, func() {
		inv := shInvoker(writeScript(t, dir, "ok.sh", fmt.Sprintf("printf '%%s\\n' '%s'", highRisk)))

		Convey("When invoked with the scenario payload", func() {
			res, err := inv.Invoke(ctx, scenarioPayload)

			Convey("Then the three fields are passed through", func() {
				So(err, ShouldBeNil)
				So(res, ShouldResemble, inference.Result{Score: 62, Probability: 0.71, RiskLevel: "High Risk"})
			})
		})

		Convey("When invoked twice with the same payload", func() {
			first, err1 := inv.Invoke(ctx, scenarioPayload)
			second, err2 := inv.Invoke(ctx, scenarioPayload)

			Convey("Then both results are identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})
	})

	Convey("Given a scorer that writes its output in several chunks", t, func() {
		body := `printf '{"score":'
sleep 0.05
printf '17,"probability":0.17,'
sleep 0.05
printf '"riskLevel":"Low"}'
printf 'loading model\n' >&2`
		inv := shInvoker(writeScript(t, dir, "chunks.sh", body))

		Convey("Then every chunk is collected before exit is handled", func() {
			res, err := inv.Invoke(ctx, scenarioPayload)
			So(err, ShouldBeNil)
			So(res.Score, ShouldEqual, 17.0)
			So(res.Probability, ShouldEqual, 0.17)
			So(res.RiskLevel, ShouldEqual, "Low")
		})
	})

	Convey("Given a scorer that returns out-of-range values", t, func() {
		inv := shInvoker(writeScript(t, dir, "odd.sh", `echo '{"score":250,"probability":-3,"riskLevel":"Whatever"}'`))

		Convey("Then nothing is clamped or recomputed", func() {
			res, err := inv.Invoke(ctx, scenarioPayload)
			So(err, ShouldBeNil)
			So(res, ShouldResemble, inference.Result{Score: 250, Probability: -3, RiskLevel: "Whatever"})
		})
	})
}

func TestInvoke_ForwardsPayload(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "argv.json")

	Convey("Given a scorer that records its first argument", t, func() {
		body := `printf '%s' "$1" > "$PAYLOAD_OUT"
printf '%s' '{"score":1,"probability":0.01,"riskLevel":"Low"}'`
		inv := shInvoker(writeScript(t, dir, "record.sh", body),
			inference.WithEnv([]string{"PAYLOAD_OUT=" + out}))

		Convey("When the payload has an arbitrary shape", func() {
			payload := map[string]any{"note": "it's \"quoted\" & spaced", "nested": map[string]any{"k": []int{1, 2}}}
			_, err := inv.Invoke(context.Background(), payload)
			So(err, ShouldBeNil)

			Convey("Then it arrives as one JSON-encoded argument", func() {
				got, readErr := os.ReadFile(out)
				So(readErr, ShouldBeNil)
				So(string(got), ShouldEqual, `{"nested":{"k":[1,2]},"note":"it's \"quoted\" & spaced"}`)
			})
		})
	})
}

func TestInvoke_ScorerReportedError(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	Convey("Given a scorer that exits 0 with an error field", t, func() {
		inv := shInvoker(writeScript(t, dir, "reported.sh", `echo '{"error":"Error making prediction: bad feature"}'`))

		Convey("Then the invocation fails with that message", func() {
			res, err := inv.Invoke(context.Background(), scenarioPayload)
			So(res, ShouldResemble, inference.Result{})
			So(errors.Is(err, inference.ErrScorerReported), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "Error making prediction: bad feature")
			So(inference.Outcome(err), ShouldEqual, "reported_error")
		})
	})

	Convey("Given a scorer whose error field is empty", t, func() {
		inv := shInvoker(writeScript(t, dir, "empty-error.sh",
			`echo '{"score":5,"probability":0.05,"riskLevel":"Low","error":""}'`))

		Convey("Then the prediction is accepted", func() {
			res, err := inv.Invoke(context.Background(), scenarioPayload)
			So(err, ShouldBeNil)
			So(res.RiskLevel, ShouldEqual, "Low")
		})
	})
}

func TestInvoke_ProcessError(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	Convey("Given scorers that exit non-zero", t, func() {
		Convey("When stderr has content", func() {
			inv := shInvoker(writeScript(t, dir, "stderr.sh", `echo partial
echo "model file not found" >&2
exit 1`))
			_, err := inv.Invoke(context.Background(), scenarioPayload)

			Convey("Then stderr is preferred", func() {
				So(errors.Is(err, inference.ErrScorerProcess), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "scorer process failed (code 1): model file not found")

				var ie *inference.Error
				So(errors.As(err, &ie), ShouldBeTrue)
				So(ie.ExitCode, ShouldEqual, 1)
				So(ie.Stdout, ShouldEqual, "partial\n")
				So(ie.Stderr, ShouldEqual, "model file not found\n")
			})
		})

		Convey("When only stdout has content", func() {
			inv := shInvoker(writeScript(t, dir, "stdout.sh", `echo '{"error":"Model file not found"}'
exit 2`))
			_, err := inv.Invoke(context.Background(), scenarioPayload)

			Convey("Then stdout is used", func() {
				So(errors.Is(err, inference.ErrScorerProcess), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "(code 2)")
				So(err.Error(), ShouldContainSubstring, "Model file not found")
			})
		})

		Convey("When both streams are empty", func() {
			inv := shInvoker(writeScript(t, dir, "silent.sh", `exit 3`))
			_, err := inv.Invoke(context.Background(), scenarioPayload)

			Convey("Then the message says so", func() {
				So(err.Error(), ShouldEqual, "scorer process failed (code 3): Unknown error")
				So(inference.Outcome(err), ShouldEqual, "process_error")
			})
		})
	})
}

func TestInvoke_ResultParseError(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	Convey("Given a scorer that prints something other than JSON", t, func() {
		inv := shInvoker(writeScript(t, dir, "garbage.sh", `echo "Traceback (most recent call last):"
echo "DeprecationWarning: sklearn" >&2`))
		_, err := inv.Invoke(context.Background(), scenarioPayload)

		Convey("Then the error carries the parse failure and both streams", func() {
			So(errors.Is(err, inference.ErrResultParse), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "failed to parse prediction result:")
			So(err.Error(), ShouldContainSubstring, "Output: Traceback (most recent call last):")
			So(err.Error(), ShouldContainSubstring, "Error: DeprecationWarning: sklearn")
		})
	})

	Convey("Given scorers that print non-object JSON", t, func() {
		for name, body := range map[string]string{
			"null.sh":   `echo null`,
			"array.sh":  `echo '[62, 0.71]'`,
			"two.sh":    `echo '{"score":1}{"score":2}'`,
			"silent.sh": `true`,
		} {
			inv := shInvoker(writeScript(t, dir, name, body))
			_, err := inv.Invoke(context.Background(), scenarioPayload)
			So(errors.Is(err, inference.ErrResultParse), ShouldBeTrue)
		}
	})
}

func TestInvoke_ScorerUnavailable(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	Convey("Given an executable that does not exist", t, func() {
		inv := inference.New(
			inference.WithCommand("pcos-scorer-that-does-not-exist"),
			inference.WithScript("predict.py"),
		)
		_, err := inv.Invoke(context.Background(), scenarioPayload)

		Convey("Then the failure is reported as not found", func() {
			So(errors.Is(err, inference.ErrScorerNotFound), ShouldBeTrue)
			So(errors.Is(err, inference.ErrScorerUnavailable), ShouldBeTrue)
			So(errors.Is(err, exec.ErrNotFound), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "pcos-scorer-that-does-not-exist")
			So(inference.Outcome(err), ShouldEqual, "not_found")
			So(inv.Check(), ShouldNotBeNil)
		})
	})

	Convey("Given an executable path that cannot be launched", t, func() {
		notExec := filepath.Join(dir, "not-executable")
		So(os.WriteFile(notExec, []byte("plain text"), 0o600), ShouldBeNil)
		inv := inference.New(inference.WithCommand(notExec), inference.WithScript("predict.py"))
		_, err := inv.Invoke(context.Background(), scenarioPayload)

		Convey("Then it is unavailable but not missing", func() {
			So(errors.Is(err, inference.ErrScorerUnavailable), ShouldBeTrue)
			So(errors.Is(err, inference.ErrScorerNotFound), ShouldBeFalse)
			So(err.Error(), ShouldStartWith, "failed to start scorer process:")
		})
	})

	Convey("Given a payload that cannot be encoded", t, func() {
		inv := shInvoker(writeScript(t, dir, "never.sh", `exit 0`))
		_, err := inv.Invoke(context.Background(), map[string]any{"bad": make(chan int)})

		Convey("Then no process is started", func() {
			So(errors.Is(err, inference.ErrEncodePayload), ShouldBeTrue)
		})
	})
}

func TestInvoke_Timeout(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	Convey("Given a scorer that hangs", t, func() {
		script := writeScript(t, dir, "hang.sh", `echo "loading" >&2
sleep 5`)

		Convey("When the invoker timeout expires", func() {
			inv := shInvoker(script, inference.WithTimeout(200*time.Millisecond), inference.WithWaitDelay(500*time.Millisecond))
			start := time.Now()
			_, err := inv.Invoke(context.Background(), scenarioPayload)

			Convey("Then the process is killed and reported as timed out", func() {
				So(time.Since(start), ShouldBeLessThan, 4*time.Second)
				So(errors.Is(err, inference.ErrScorerTimeout), ShouldBeTrue)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(inference.Outcome(err), ShouldEqual, "timeout")
			})
		})

		Convey("When the caller cancels", func() {
			inv := shInvoker(script, inference.WithTimeout(0), inference.WithWaitDelay(500*time.Millisecond))
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(100*time.Millisecond, cancel)
			_, err := inv.Invoke(ctx, scenarioPayload)

			Convey("Then the cancellation is surfaced", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(errors.Is(err, inference.ErrScorerTimeout), ShouldBeFalse)
				So(inference.Outcome(err), ShouldEqual, "canceled")
			})
		})
	})
}

func TestInvoke_Concurrent(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	Convey("Given a scorer whose score echoes the age it was sent", t, func() {
		body := `age=$(printf '%s' "$1" | sed 's/[^0-9]//g')
printf '{"score":%s,"probability":0.5,"riskLevel":"Moderate"}' "$age"`
		var started, exited, finished atomic.Int64
		inv := shInvoker(writeScript(t, dir, "echo-age.sh", body), inference.WithHooks(inference.Hooks{
			Started:  func() { started.Add(1) },
			Exited:   func() { exited.Add(1) },
			Finished: func(string, time.Duration) { finished.Add(1) },
		}))

		Convey("When many invocations run at once", func() {
			const n = 8
			results := make([]inference.Result, n)
			errs := make([]error, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = inv.Invoke(context.Background(), map[string]int{"age": 20 + i})
				}(i)
			}
			wg.Wait()

			Convey("Then each gets the result of its own process", func() {
				for i := 0; i < n; i++ {
					So(errs[i], ShouldBeNil)
					So(results[i].Score, ShouldEqual, float64(20+i))
				}
				So(started.Load(), ShouldEqual, int64(n))
				So(exited.Load(), ShouldEqual, int64(n))
				So(finished.Load(), ShouldEqual, int64(n))
			})
		})
	})
}

func TestDefaults(t *testing.T) {
	Convey("Given a default invoker", t, func() {
		inv := inference.New()
		command, script := inv.Command()

		Convey("Then it runs the Python scorer script", func() {
			So(command, ShouldEqual, inference.DefaultCommand())
			So(script, ShouldEqual, "backend/ml/predict.py")
		})
	})
}
