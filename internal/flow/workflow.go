package flow

import (
	"context"
	"errors"
	"fmt"

	"gitflow/internal/git"
	"gitflow/internal/logging"
)

// StartOptions controls Start.
type StartOptions struct {
	// Message, when set, commits the working tree on the new branch.
	Message string
	Body    string
	// SkipSwitch branches from the current HEAD instead of the base branch.
	SkipSwitch bool
}

// Start resolves spec, branches from its base branch and checks the new
// branch out. An existing branch of the same name is resumed instead.
// Release branches get their version tag locally; it is pushed by Finish.
func (s *Session) Start(ctx context.Context, spec BranchSpec, opts StartOptions) (rb ResolvedBranch, err error) {
	rb, err = s.resolve(ctx, spec)
	if err != nil {
		return ResolvedBranch{}, err
	}
	logging.Logger.Debug("start", "branch", rb.FullName, "base", rb.BaseBranch, "tag", rb.VersionTag)

	original, _ := s.repo.CurrentBranch(ctx)
	defer func() {
		if err != nil {
			s.restore(ctx, original)
		}
	}()

	online := s.online(ctx)
	if !online {
		s.out.Warnf("No network connection. Working offline.")
	}

	if !rb.SkipBaseSwitch && !opts.SkipSwitch {
		if err := s.checkoutOrTrack(ctx, rb.BaseBranch); err != nil {
			return ResolvedBranch{}, err
		}
		s.pullIfOnline(ctx, rb.BaseBranch)
	}

	switch {
	case s.repo.BranchExists(ctx, rb.FullName):
		if err := s.checkout(ctx, rb.FullName); err != nil {
			return ResolvedBranch{}, err
		}
		s.out.Warnf("Switched to existing branch %s", rb.FullName)
	case online && s.repo.RemoteBranchExists(ctx, s.remote, rb.FullName):
		if err := s.repo.CreateTrackingBranch(ctx, s.remote, rb.FullName); err != nil {
			return ResolvedBranch{}, fmt.Errorf("failed to create %s: %w", rb.FullName, err)
		}
		s.out.Successf("Created %s from %s/%s", rb.FullName, s.remote, rb.FullName)
	default:
		if err := s.repo.CreateBranch(ctx, rb.FullName, ""); err != nil {
			return ResolvedBranch{}, fmt.Errorf("failed to create %s: %w", rb.FullName, err)
		}
		s.out.Successf("Created and switched to branch %s", rb.FullName)
	}

	if opts.Message != "" {
		committed, err := s.commitAll(ctx, ComposeCommitMessage(opts.Message, opts.Body))
		if err != nil {
			return ResolvedBranch{}, err
		}
		if committed {
			s.out.Successf("Initial commit: %s", opts.Message)
		} else {
			s.out.Infof("No changes to commit.")
		}
	}

	if rb.VersionTag != "" {
		if s.repo.TagExists(ctx, rb.VersionTag) {
			s.out.Infof("Tag %s already exists", rb.VersionTag)
		} else if err := s.repo.CreateTag(ctx, rb.VersionTag, "Release "+rb.VersionTag); err != nil {
			return ResolvedBranch{}, fmt.Errorf("failed to create tag %s: %w", rb.VersionTag, err)
		} else {
			s.out.Successf("Created local tag %s", rb.VersionTag)
		}
	}

	if !online {
		s.out.Warnf("Branch created locally. Push it when back online.")
	}
	return rb, nil
}

// FinishOptions controls Finish.
type FinishOptions struct {
	// KeepLocal keeps the local branch when the remote one is deleted.
	KeepLocal bool
	// NoDelete keeps both copies of the branch.
	NoDelete bool
}

// FinishResult summarises a Finish run.
type FinishResult struct {
	Branch       ResolvedBranch
	Push         OperationOutcome
	PullRequests []string
	Deleted      bool
}

// Finish pushes the branch, opens the pull requests its type calls for and
// deletes it when nothing is left to merge. An empty spec finishes the
// current branch. The session ends on the develop branch, or on the starting
// branch when the user aborts.
func (s *Session) Finish(ctx context.Context, spec BranchSpec, opts FinishOptions) (res FinishResult, err error) {
	original, _ := s.repo.CurrentBranch(ctx)
	switch {
	case spec.Type == "":
		spec = s.resolver.Infer(original)
	case spec.Type == TypeRelease && spec.Name == "":
		current := s.resolver.Infer(original)
		if current.Type != TypeRelease {
			return FinishResult{}, fmt.Errorf("%w: not on a release branch, name the release to finish", ErrInvalidSpecification)
		}
		spec = current
	}
	rb, err := s.resolve(ctx, spec)
	if err != nil {
		return FinishResult{}, err
	}
	if s.branches.Protected(rb.FullName) {
		return FinishResult{}, fmt.Errorf("%w: cannot finish %s", ErrInvalidSpecification, rb.FullName)
	}
	switch rb.Type {
	case TypeFeature, TypeHotfix, TypeRelease:
	default:
		return FinishResult{}, fmt.Errorf("%w: %s is not a feature, hotfix or release branch", ErrInvalidSpecification, rb.FullName)
	}
	res.Branch = rb
	logging.Logger.Debug("finish", "branch", rb.FullName, "type", string(rb.Type))

	var rec reconciliation
	defer func() {
		if errors.Is(err, ErrUserAbort) {
			s.restore(ctx, original)
		} else {
			s.restore(ctx, s.branches.Develop)
		}
		s.offerStashPop(ctx, rec)
	}()

	if err := s.checkout(ctx, rb.FullName); err != nil {
		return res, err
	}
	rec, err = s.reconcile(ctx, "finishing "+rb.FullName)
	if err != nil {
		return res, err
	}

	online := s.online(ctx)
	if online {
		if err := s.repo.Fetch(ctx, s.remote); err != nil {
			s.out.Warnf("Failed to fetch from %s: %v", s.remote, err)
		}
		res.Push = s.fallback.PushOrFallback(ctx, rb.FullName)
	} else {
		s.out.Warnf("No network connection. %s will be pushed when online.", rb.FullName)
		res.Push = OperationOutcome{PendingPush: true}
	}

	if rb.VersionTag != "" && online && s.repo.TagExists(ctx, rb.VersionTag) {
		if err := s.repo.PushTag(ctx, s.remote, rb.VersionTag); err != nil {
			s.out.Warnf("Failed to push tag %s: %v", rb.VersionTag, err)
		} else {
			s.out.Successf("Pushed tag %s", rb.VersionTag)
		}
	}

	pushedDirect := res.Push.Success && res.Push.SideBranch == ""
	prOpen := res.Push.PullRequestCreated
	prFailed := false
	if online && pushedDirect {
		for _, base := range s.finishTargets(rb.Type) {
			pr := s.openPullRequest(ctx, rb.FullName, base,
				pullRequestTitle(rb.FullName, base),
				fmt.Sprintf("Merge %s %s into %s", rb.Type, rb.FullName, base))
			prOpen = prOpen || pr.open
			prFailed = prFailed || pr.failed
			if pr.url != "" {
				res.PullRequests = append(res.PullRequests, pr.url)
			}
		}
	}

	if res.Push.SideBranch != "" && res.Push.Success {
		s.pruneSideBranch(ctx, res.Push.SideBranch)
	}

	switch {
	case opts.NoDelete:
		s.out.Infof("Keeping %s as requested.", rb.FullName)
	case !online || !pushedDirect:
		s.out.Warnf("%s not deleted because it has not been pushed.", rb.FullName)
	case prOpen:
		s.out.Warnf("%s not deleted because a pull request is open for it.", rb.FullName)
	case prFailed:
		s.out.Warnf("%s not deleted because a pull request could not be evaluated.", rb.FullName)
	default:
		open, checkErr := s.hasOpenPullRequest(ctx, rb.FullName)
		switch {
		case checkErr != nil:
			s.out.Warnf("%s not deleted because open pull requests could not be checked: %v", rb.FullName, checkErr)
		case open:
			s.out.Warnf("%s not deleted because a pull request is open for it.", rb.FullName)
		default:
			res.Deleted = s.deleteFinished(ctx, rb.FullName, opts.KeepLocal)
		}
	}
	return res, nil
}

// finishTargets lists the branches a finished branch is merged into.
func (s *Session) finishTargets(t BranchType) []string {
	switch t {
	case TypeRelease, TypeHotfix:
		return []string{s.branches.Main, s.branches.Develop}
	case TypeFeature:
		return []string{s.branches.Develop}
	}
	return nil
}

// deleteFinished removes branch remotely and, unless keepLocal, locally.
func (s *Session) deleteFinished(ctx context.Context, branch string, keepLocal bool) bool {
	if err := s.checkout(ctx, s.branches.Develop); err != nil {
		s.out.Errorf("Failed to leave %s: %v", branch, err)
		return false
	}
	deleted := true
	if !keepLocal {
		if err := s.repo.DeleteLocalBranch(ctx, branch, false); err != nil {
			if s.repo.Classifier().Classify(err) == git.FailureNotFullyMerged {
				s.out.Warnf("Kept local %s because it is not fully merged.", branch)
			} else {
				s.out.Errorf("Failed to delete local %s: %v", branch, err)
			}
			deleted = false
		} else {
			s.out.Successf("Deleted local branch %s", branch)
		}
	} else {
		s.out.Infof("Keeping local branch %s as requested.", branch)
	}
	if err := s.repo.DeleteRemoteBranch(ctx, s.remote, branch); err != nil {
		s.out.Errorf("Failed to delete %s/%s: %v", s.remote, branch, err)
		return false
	}
	s.out.Successf("Deleted remote branch %s/%s", s.remote, branch)
	return deleted
}

// pruneSideBranch drops the local copy of a pushed side branch; the remote
// copy backs its pull request.
func (s *Session) pruneSideBranch(ctx context.Context, side string) {
	if err := s.repo.DeleteLocalBranch(ctx, side, true); err != nil {
		logging.Logger.Debug("failed to delete local side branch", "branch", side, "error", err)
		return
	}
	if err := s.ledger.Remove(side); err != nil {
		s.out.Warnf("Failed to update side-branch ledger: %v", err)
	}
}

// UpdateOptions controls Update.
type UpdateOptions struct {
	Message string
	Body    string
}

// UpdateResult summarises an Update run.
type UpdateResult struct {
	Branch  string
	Skipped bool
	Merge   MergeResult
	Push    OperationOutcome
}

// Update merges the current release branch back into develop without
// deleting it. Nothing happens when develop already has everything the
// release branch carries, so running it twice in a row is a no-op.
func (s *Session) Update(ctx context.Context, opts UpdateOptions) (res UpdateResult, err error) {
	current, err := s.repo.CurrentBranch(ctx)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to determine current branch: %w", err)
	}
	if s.resolver.Infer(current).Type != TypeRelease {
		return UpdateResult{}, fmt.Errorf("%w: current branch %q is not a release branch", ErrInvalidSpecification, current)
	}
	res.Branch = current
	develop := s.branches.Develop

	var rec reconciliation
	defer func() {
		s.restore(ctx, current)
		s.popUnlessMerging(ctx, rec)
	}()

	if opts.Message != "" {
		committed, err := s.commitAll(ctx, ComposeCommitMessage(opts.Message, opts.Body))
		if err != nil {
			return res, err
		}
		if committed {
			s.out.Successf("Committed: %s", opts.Message)
		}
	}
	rec, err = s.reconcile(ctx, "updating "+current)
	if err != nil {
		return res, err
	}

	online := s.online(ctx)
	if online {
		if err := s.repo.Fetch(ctx, s.remote); err != nil {
			s.out.Warnf("Failed to fetch from %s: %v", s.remote, err)
		}
		s.fallback.PushOrFallback(ctx, current)
	} else {
		s.out.Warnf("No network connection. Working offline.")
	}

	if !s.analyzer.HasDifferences(ctx, develop, current) {
		s.out.Infof("No differences between %s and %s. No update needed.", current, develop)
		res.Skipped = true
		return res, nil
	}

	if err := s.checkoutOrTrack(ctx, develop); err != nil {
		return res, err
	}
	s.pullIfOnline(ctx, develop)

	s.out.Infof("Merging %s into %s...", current, develop)
	res.Merge, err = s.mergeInto(ctx, MergeRequest{Source: current, Target: develop, NoFF: true})
	if err != nil {
		return res, err
	}
	if !res.Merge.Completed() {
		s.out.Warnf("%s was not merged into %s.", current, develop)
		return res, nil
	}

	if !online {
		s.out.Warnf("Working offline. Push %s and open a pull request into %s when online.", develop, s.branches.Main)
		res.Push = OperationOutcome{PendingPush: true}
		return res, nil
	}
	res.Push = s.fallback.PushOrFallback(ctx, develop)
	if res.Push.Success && res.Push.SideBranch == "" {
		s.openPullRequest(ctx, develop, s.branches.Main,
			pullRequestTitle(develop, s.branches.Main),
			fmt.Sprintf("Merge %s into %s after updating from %s", develop, s.branches.Main, current))
	}
	return res, nil
}

// WeeklyOptions controls WeeklyUpdate.
type WeeklyOptions struct {
	Message string
	Body    string
}

// WeeklyUpdate commits pending changes on the weekly branch, pushes it and
// opens pull requests into main and develop. The weekly branch is never deleted.
func (s *Session) WeeklyUpdate(ctx context.Context, opts WeeklyOptions) (res OperationOutcome, err error) {
	weekly := s.branches.Weekly
	original, _ := s.repo.CurrentBranch(ctx)
	defer s.restore(ctx, original)

	online := s.online(ctx)
	switch {
	case s.repo.BranchExists(ctx, weekly):
		if err := s.checkout(ctx, weekly); err != nil {
			return res, err
		}
		s.pullIfOnline(ctx, weekly)
	case online && s.fetchRemoteBranch(ctx, weekly):
		if err := s.repo.CreateTrackingBranch(ctx, s.remote, weekly); err != nil {
			return res, fmt.Errorf("failed to create %s: %w", weekly, err)
		}
		s.out.Successf("Pulled changes from %s", weekly)
	default:
		if err := s.repo.CreateBranch(ctx, weekly, s.branches.Develop); err != nil {
			return res, fmt.Errorf("failed to create %s: %w", weekly, err)
		}
		s.out.Successf("Created %s from %s", weekly, s.branches.Develop)
	}

	body := "Merging weekly updates"
	dirty, err := s.repo.IsDirty(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read working tree status: %w", err)
	}
	if dirty {
		message, err := s.promptCommitMessage(opts.Message, opts.Body)
		if err != nil {
			return res, err
		}
		if _, err := s.commitAll(ctx, message); err != nil {
			return res, err
		}
		s.out.Successf("Changes committed.")
		body = message
	} else {
		s.out.Infof("No changes to commit.")
	}

	res = s.fallback.PushOrFallback(ctx, weekly)
	if !online || !res.Success || res.SideBranch != "" {
		return res, nil
	}

	opened := false
	for _, base := range []string{s.branches.Develop, s.branches.Main} {
		pr := s.openPullRequest(ctx, weekly, base, "Merge weekly updates into "+base, body)
		opened = opened || pr.open
		res.PullRequestCreated = res.PullRequestCreated || pr.created
		if pr.url != "" {
			res.PullRequestURL = pr.url
		}
	}
	if opened {
		s.out.Infof("%s is kept for the next cycle.", weekly)
	} else {
		s.out.Infof("No pull requests were needed; there were no differences to merge.")
	}
	return res, nil
}

// resolve fills in the default increment and resolves spec against the
// repository's tags.
func (s *Session) resolve(ctx context.Context, spec BranchSpec) (ResolvedBranch, error) {
	if spec.Type == TypeRelease && spec.Increment == "" {
		spec.Increment = s.incr
	}
	var tags []string
	if spec.Type == TypeRelease {
		var err error
		tags, err = s.repo.Tags(ctx)
		if err != nil {
			return ResolvedBranch{}, fmt.Errorf("failed to list tags: %w", err)
		}
	}
	return s.resolver.Resolve(spec, tags)
}

func (s *Session) fetchRemoteBranch(ctx context.Context, branch string) bool {
	if err := s.repo.Fetch(ctx, s.remote, branch); err != nil {
		return false
	}
	return s.repo.RemoteBranchExists(ctx, s.remote, branch)
}

type prOutcome struct {
	open    bool
	created bool
	failed  bool
	url     string
}

// openPullRequest requests head into base, skipping it when base already has
// everything head carries.
func (s *Session) openPullRequest(ctx context.Context, head, base, title, body string) prOutcome {
	if !s.analyzer.HasDifferences(ctx, base, head) {
		s.out.Infof("No differences between %s and %s. Skipping pull request.", head, base)
		return prOutcome{}
	}
	if s.prs == nil {
		s.out.Warnf("No pull request backend available. Open a pull request from %s into %s manually.", head, base)
		return prOutcome{failed: true}
	}
	res, err := s.prs.CreatePullRequest(ctx, git.PullRequest{
		Base:  base,
		Head:  head,
		Title: title,
		Body:  body,
		Draft: s.draft,
	})
	switch {
	case err != nil:
		s.out.Errorf("Failed to create pull request from %s into %s: %v", head, base, err)
		return prOutcome{failed: true}
	case res.Created:
		s.out.Successf("Created pull request to merge %s into %s %s", head, base, res.URL)
		return prOutcome{open: true, created: true, url: res.URL}
	case res.Open():
		s.out.Warnf("A pull request already exists for %s into %s", head, base)
		return prOutcome{open: true, url: res.URL}
	default:
		s.out.Infof("No commits between %s and %s. No pull request created.", head, base)
		return prOutcome{}
	}
}

// hasOpenPullRequest reports whether an open pull request backs branch. An
// error means the answer is unknown and callers must keep the branch.
func (s *Session) hasOpenPullRequest(ctx context.Context, branch string) (bool, error) {
	if s.prs == nil {
		return false, nil
	}
	open, err := s.prs.HasOpenPullRequest(ctx, branch)
	if err != nil {
		logging.Logger.Debug("open pull request check failed", "branch", branch, "error", err)
		return false, err
	}
	return open, nil
}
