package executor

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Runner runs an external command to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Command is a single external program invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

// Shell returns a command that runs line through sh -c.
func Shell(line, dir string) Command {
	return Command{Name: "sh", Args: []string{"-c", line}, Dir: dir}
}

// String renders the command the way an operator would type it.
func (c Command) String() string {
	if c.Name == "sh" && len(c.Args) == 2 && c.Args[0] == "-c" {
		return c.Args[1]
	}
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds the output of a completed command.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// CommandError reports a command that could not run or exited non-zero.
// ExitCode is -1 when the process never started.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Command, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\nstderr: " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// LaunchError reports a long-running process that failed to start or that
// failed its smoke test.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
