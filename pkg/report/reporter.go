package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/pixelblaze-tools/pb-go/pkg/session"
)

// Process exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Reporter writes results to an output and an error stream.
// It is safe for concurrent use.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

// New creates a Reporter.
func New(out, errw io.Writer) *Reporter {
	return &Reporter{out: out, err: errw}
}

// Progressf writes a progress line to the error stream.
func (r *Reporter) Progressf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.err, format+"\n", args...)
}

// Value writes a machine-readable line to the output stream.
func (r *Reporter) Value(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, line)
}

// JSON writes v as compact JSON on one output line.
func (r *Reporter) JSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Value(string(data))
	return nil
}

// Warn writes a warning to the error stream.
func (r *Reporter) Warn(err error) {
	r.Progressf("warning: %v", err)
}

// Fail writes an error to the error stream.
func (r *Reporter) Fail(err error) {
	r.Progressf("error: %v", err)
}

// Usage writes a usage error and returns ExitUsage.
func (r *Reporter) Usage(err error) int {
	r.Fail(err)
	return ExitUsage
}

// Finish reports a session result and returns the process exit code.
// Input errors exit with ExitUsage, other failures with ExitFailure;
// warnings never change the exit code.
func (r *Reporter) Finish(res session.Result) int {
	for _, w := range res.Warnings {
		r.Warn(w)
	}

	if res.Status == session.Failure {
		r.Fail(res.Err)
		if errors.Is(res.Err, session.ErrInvalidInput) {
			return ExitUsage
		}
		return ExitFailure
	}

	if res.Summary != "" {
		r.Progressf("%s", res.Summary)
	}
	if res.Value != nil {
		r.value(res.Value)
	}
	if res.Ping != nil {
		r.ping(res.Ping)
	}
	return ExitSuccess
}

func (r *Reporter) ping(p *session.PingStats) {
	r.Progressf("")
	r.Progressf("--- Ping statistics ---")
	r.Progressf("Packets: Sent = %d, Received = %d, Lost = %d (%d%% loss)",
		p.Sent, p.Received, p.Lost(), p.LossPercent())
	r.Progressf("Round-trip times: min = %sms, max = %sms, avg = %sms",
		Millis(p.Min), Millis(p.Max), Millis(p.Avg))

	// The average is the last stdout line so scripts can tail it.
	r.Value(Millis(p.Avg))
}

func (r *Reporter) value(v any) {
	switch v := v.(type) {
	case string:
		r.Value(v)
	case float64:
		r.Value(strconv.FormatFloat(v, 'f', -1, 64))
	case int:
		r.Value(strconv.Itoa(v))
	default:
		if err := r.JSON(v); err != nil {
			r.Value(fmt.Sprint(v))
		}
	}
}
