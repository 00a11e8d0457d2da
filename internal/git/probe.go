package git

import (
	"context"
	"time"

	"gitflow/internal/logging"
)

// DefaultProbeTimeout bounds the reachability check.
const DefaultProbeTimeout = 10 * time.Second

// RemoteProbe checks whether a remote answers a lightweight ref listing.
// Results are remembered for the life of the probe, which is one command invocation.
type RemoteProbe struct {
	repo    *Repo
	timeout time.Duration
	seen    map[string]bool
}

// NewRemoteProbe returns a probe for the remotes of repo.
func NewRemoteProbe(repo *Repo, timeout time.Duration) *RemoteProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &RemoteProbe{repo: repo, timeout: timeout, seen: map[string]bool{}}
}

// IsReachable reports whether remote can be listed. Any failure counts as unreachable.
func (p *RemoteProbe) IsReachable(ctx context.Context, remote string) bool {
	if ok, cached := p.seen[remote]; cached {
		return ok
	}
	err := p.repo.ListRemote(ctx, remote, p.timeout)
	ok := err == nil
	if !ok {
		logging.Logger.Debug("remote unreachable", "remote", remote, "error", err)
	}
	p.seen[remote] = ok
	return ok
}
