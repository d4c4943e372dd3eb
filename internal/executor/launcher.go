package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"
)

// Lifetime states who is responsible for ending a launched process.
type Lifetime int

const (
	// LifetimePersistent handles outlive the pipeline. The caller keeps the
	// process running after the run and stops it on interrupt.
	LifetimePersistent Lifetime = iota
	// LifetimeSmokeTest handles are owned by the pipeline and stopped as soon
	// as the verification window closes.
	LifetimeSmokeTest
)

func (l Lifetime) String() string {
	if l == LifetimeSmokeTest {
		return "smoke-test"
	}
	return "persistent"
}

// LaunchSpec describes a long-running process.
type LaunchSpec struct {
	Command   string // shell line, run through sh -c
	Dir       string
	Lifetime  Lifetime
	Filter    *OutputFilter
	StopGrace time.Duration
}

// Handle is a started process. Exactly one goroutine reaps it; Done is closed
// once the process has exited and its output has been drained.
type Handle struct {
	Command  string
	Lifetime Lifetime
	PID      int

	cmd   *exec.Cmd
	grace time.Duration
	log   *slog.Logger
	ready atomic.Bool
	done  chan struct{}
	err   error
}

// Launch starts spec.Command and returns without waiting for it to exit.
func Launch(ctx context.Context, spec LaunchSpec, log *slog.Logger) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}

	cmd := exec.Command("sh", "-c", spec.Command)
	cmd.Dir = spec.Dir
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Command: spec.Command, Err: err}
	}

	grace := spec.StopGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	h := &Handle{
		Command:  spec.Command,
		Lifetime: spec.Lifetime,
		PID:      cmd.Process.Pid,
		cmd:      cmd,
		grace:    grace,
		log:      log.With("proc", "dev-server"),
		done:     make(chan struct{}),
	}
	h.log.Debug("process started", "pid", h.PID, "lifetime", h.Lifetime)

	var g errgroup.Group
	g.Go(func() error { return h.pump(stdout, Stdout, spec.Filter) })
	g.Go(func() error { return h.pump(stderr, Stderr, spec.Filter) })
	go func() {
		pumpErr := g.Wait()
		h.err = cmd.Wait()
		if h.err == nil && pumpErr != nil {
			h.err = pumpErr
		}
		close(h.done)
	}()

	return h, nil
}

func (h *Handle) pump(r io.Reader, s Stream, f *OutputFilter) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		lvl, ready := f.Classify(s, line)
		if ready && !h.ready.Swap(true) {
			h.log.Info("dev server compiled")
		}
		h.log.Log(context.Background(), lvl, line, "stream", s)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("reading %s: %w", s, err)
	}
	return nil
}

// Ready reports whether the ready pattern has been seen.
func (h *Handle) Ready() bool { return h.ready.Load() }

// Done is closed when the process has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Exited reports whether the process has already exited.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits and returns its exit error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Stop interrupts the process group, waits up to the stop grace period, then
// kills it. A cancelled ctx skips the rest of the grace period.
func (h *Handle) Stop(ctx context.Context) error {
	if h.Exited() {
		return nil
	}
	h.log.Info("stopping dev server", "pid", h.PID)
	if err := interruptGroup(h.cmd.Process); err != nil {
		h.log.Warn("interrupt failed", "err", err)
	}

	t := time.NewTimer(h.grace)
	defer t.Stop()
	select {
	case <-h.done:
		return nil
	case <-t.C:
	case <-ctx.Done():
	}

	h.log.Warn("dev server did not stop in time, killing", "grace", h.grace)
	if err := killGroup(h.cmd.Process); err != nil {
		return fmt.Errorf("killing dev server: %w", err)
	}
	<-h.done
	return nil
}

// WaitReady polls url until it answers with a status below 500.
func WaitReady(ctx context.Context, url string, attempts uint, delay time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("%s answered %s", url, resp.Status)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}
