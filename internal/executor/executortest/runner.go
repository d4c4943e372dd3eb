// Package executortest provides a scripted executor.Runner for tests.
package executortest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/futureCreator/autoship/internal/executor"
)

// Response is the canned outcome of a command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int // non-zero fails the command with an executor.CommandError
	// Then runs after the command is recorded, before the response is returned.
	Then func()
}

// Runner records every command and answers from a script. Script keys are
// command prefixes as rendered by executor.Command.String; the longest
// matching prefix wins. Each key may hold several responses, consumed in
// order; the last one repeats. Unscripted commands succeed with no output.
type Runner struct {
	mu     sync.Mutex
	script map[string][]Response
	calls  []executor.Command
}

// New returns an empty runner.
func New() *Runner {
	return &Runner{script: map[string][]Response{}}
}

// On appends responses for commands starting with prefix.
func (r *Runner) On(prefix string, responses ...Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script[prefix] = append(r.script[prefix], responses...)
	return r
}

// Fail makes commands starting with prefix exit with status 1.
func (r *Runner) Fail(prefix, stderr string) *Runner {
	return r.On(prefix, Response{ExitCode: 1, Stderr: stderr})
}

func (r *Runner) Run(ctx context.Context, c executor.Command) (*executor.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	resp := r.next(c.String())
	r.mu.Unlock()

	if resp.Then != nil {
		resp.Then()
	}
	res := &executor.Result{Stdout: resp.Stdout, Stderr: resp.Stderr}
	if resp.ExitCode != 0 {
		return res, &executor.CommandError{
			Command:  c.String(),
			ExitCode: resp.ExitCode,
			Stderr:   resp.Stderr,
			Err:      fmt.Errorf("exit status %d", resp.ExitCode),
		}
	}
	return res, nil
}

func (r *Runner) next(line string) Response {
	best := ""
	found := false
	for prefix := range r.script {
		if strings.HasPrefix(line, prefix) && (!found || len(prefix) > len(best)) {
			best, found = prefix, true
		}
	}
	if !found {
		return Response{}
	}
	queue := r.script[best]
	resp := queue[0]
	if len(queue) > 1 {
		r.script[best] = queue[1:]
	}
	return resp
}

// Calls returns the recorded commands.
func (r *Runner) Calls() []executor.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]executor.Command(nil), r.calls...)
}

// Lines returns the recorded commands rendered as strings.
func (r *Runner) Lines() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Count returns how many recorded commands start with prefix.
func (r *Runner) Count(prefix string) int {
	n := 0
	for _, l := range r.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}
