package executor

import (
	"fmt"
	"log/slog"
	"regexp"
)

// Stream identifies which pipe a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// OutputFilter reclassifies child process output before it is logged.
// Error patterns win over the ready pattern, which wins over quiet patterns.
type OutputFilter struct {
	ready *regexp.Regexp
	quiet []*regexp.Regexp
	errs  []*regexp.Regexp
}

// NewOutputFilter compiles the patterns. An empty ready pattern disables
// ready detection.
func NewOutputFilter(ready string, quiet, errs []string) (*OutputFilter, error) {
	f := &OutputFilter{}
	if ready != "" {
		re, err := regexp.Compile(ready)
		if err != nil {
			return nil, fmt.Errorf("ready pattern: %w", err)
		}
		f.ready = re
	}
	var err error
	if f.quiet, err = compileAll(quiet); err != nil {
		return nil, fmt.Errorf("quiet pattern: %w", err)
	}
	if f.errs, err = compileAll(errs); err != nil {
		return nil, fmt.Errorf("error pattern: %w", err)
	}
	return f, nil
}

// Classify returns the log level for line and whether it signals readiness.
// A nil filter logs stdout at info and stderr at error.
func (f *OutputFilter) Classify(s Stream, line string) (slog.Level, bool) {
	if f == nil {
		if s == Stderr {
			return slog.LevelError, false
		}
		return slog.LevelInfo, false
	}
	if matchAny(f.errs, line) {
		return slog.LevelError, false
	}
	if f.ready != nil && f.ready.MatchString(line) {
		return slog.LevelInfo, true
	}
	if matchAny(f.quiet, line) {
		return slog.LevelDebug, false
	}
	if s == Stderr {
		return slog.LevelWarn, false
	}
	return slog.LevelDebug, false
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, line string) bool {
	for _, re := range res {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
