package vcs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// State is a step of the publish state machine.
type State string

const (
	StateStaged           State = "staged"
	StateCommitted        State = "committed"
	StateNoOpSkip         State = "noop-skip"
	StateSynced           State = "synced"
	StateConflictDetected State = "conflict-detected"
	StateForcePush        State = "force-push"
	StatePublished        State = "published"
)

// DefaultCommitMessage embeds the artifact name through {{artifact}}.
const DefaultCommitMessage = "build: novo hash/bundle gerado - {{artifact}}"

// ConflictError reports a failed rebase. The publisher recovers from it by
// aborting the rebase and force-pushing.
type ConflictError struct {
	Remote string
	Branch string
	Err    error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("pull --rebase %s %s failed: conflict detected during rebase: %v", e.Remote, e.Branch, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// Publisher commits pending changes and pushes them to Remote/Branch.
type Publisher struct {
	Git             *Git
	Remote          string
	Branch          string
	MessageTemplate string
	Log             *slog.Logger
}

// PublishResult describes how a publish ended.
type PublishResult struct {
	State     State
	Committed bool
	Forced    bool
	Message   string
	// Trail lists every state visited, in order.
	Trail []State
	// Conflict is set when the force-push fallback was taken.
	Conflict *ConflictError
}

func (r *PublishResult) enter(s State) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

// CommitMessage renders the commit message for artifact.
func (p *Publisher) CommitMessage(artifact string) string {
	tmpl := p.MessageTemplate
	if tmpl == "" {
		tmpl = DefaultCommitMessage
	}
	return strings.ReplaceAll(tmpl, "{{artifact}}", artifact)
}

// Publish stages everything, commits only when there are pending changes,
// rebases onto the remote and pushes. A failed rebase is aborted and the
// branch is force-pushed; every other git failure is returned.
func (p *Publisher) Publish(ctx context.Context, artifact string) (*PublishResult, error) {
	res := &PublishResult{}

	p.Log.Info("checking changes to commit")
	if err := p.Git.AddAll(ctx); err != nil {
		return res, fmt.Errorf("staging changes: %w", err)
	}
	res.enter(StateStaged)

	pending, err := p.Git.HasPendingChanges(ctx)
	if err != nil {
		return res, err
	}
	if pending {
		res.Message = p.CommitMessage(artifact)
		p.Log.Info("changes found, creating commit", "message", res.Message)
		if err := p.Git.Commit(ctx, res.Message); err != nil {
			return res, fmt.Errorf("committing: %w", err)
		}
		res.Committed = true
		res.enter(StateCommitted)
	} else {
		p.Log.Info("no changes to commit")
		res.enter(StateNoOpSkip)
	}

	p.Log.Info("updating local branch", "remote", p.Remote, "branch", p.Branch)
	if err := p.Git.PullRebase(ctx, p.Remote, p.Branch); err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		conflict := &ConflictError{Remote: p.Remote, Branch: p.Branch, Err: err}
		res.Conflict = conflict
		res.enter(StateConflictDetected)
		p.Log.Error("rebase failed, aborting and force-pushing", "err", conflict)

		if err := p.Git.RebaseAbort(ctx); err != nil {
			return res, fmt.Errorf("aborting rebase: %w", err)
		}
		res.enter(StateForcePush)
		if err := p.Git.Push(ctx, p.Remote, p.Branch, true); err != nil {
			return res, fmt.Errorf("force-pushing: %w", err)
		}
		res.Forced = true
		res.enter(StatePublished)
		p.Log.Warn("remote history overwritten", "remote", p.Remote, "branch", p.Branch)
		return res, nil
	}
	res.enter(StateSynced)

	if err := p.Git.Push(ctx, p.Remote, p.Branch, false); err != nil {
		return res, fmt.Errorf("pushing: %w", err)
	}
	res.enter(StatePublished)
	p.Log.Info("branch published", "remote", p.Remote, "branch", p.Branch)
	return res, nil
}
