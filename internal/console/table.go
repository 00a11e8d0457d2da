package console

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"gitflow/internal/flow"
	"gitflow/internal/git"
)

func (p *Printer) newTable(headers ...string) *table.Table {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
	if p.color {
		t = t.BorderStyle(mutedStyle).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
	} else {
		t = t.StyleFunc(func(int, int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	}
	return t
}

// BranchTable renders local and remote branches side by side. The current
// branch is marked with an asterisk.
func (p *Printer) BranchTable(listing flow.BranchListing, remote string) string {
	local := slices.Clone(listing.Local)
	for i, b := range local {
		if b == listing.Current {
			local[i] = "* " + b
		} else {
			local[i] = "  " + b
		}
	}
	remoteHeader := "Remote (" + remote + ")"
	if listing.Stale {
		remoteHeader += " [stale]"
	}

	t := p.newTable("Local", remoteHeader)
	for i := 0; i < max(len(local), len(listing.Remote)); i++ {
		var l, r string
		if i < len(local) {
			l = local[i]
		}
		if i < len(listing.Remote) {
			r = listing.Remote[i]
		}
		t.Row(l, r)
	}
	return t.String()
}

// StatusTable renders a status report as a two-column table.
func (p *Printer) StatusTable(report flow.StatusReport, remote string) string {
	t := p.newTable("", "")
	t.Row("Branch", report.Branch)

	last := report.LastCommit
	if last.Hash != "" {
		short := last.Hash
		if len(short) > 7 {
			short = short[:7]
		}
		t.Row("Last commit", fmt.Sprintf("%s %s (%s, %s)", short, last.Subject, last.Author, last.Date.Format("2006-01-02 15:04")))
	}

	if report.Tracked {
		t.Row("Remote", fmt.Sprintf("%s/%s: %d ahead, %d behind", remote, report.Branch, report.Ahead, report.Behind))
	} else {
		t.Row("Remote", "not pushed")
	}

	if len(report.Changes) == 0 {
		t.Row("Changes", "clean")
	} else {
		changes := make([]string, 0, len(report.Changes))
		for _, c := range report.Changes {
			changes = append(changes, c.Code+" "+c.Path)
		}
		t.Row("Changes", strings.Join(changes, "\n"))
	}

	remotes := make([]string, 0, len(report.Remotes))
	for _, r := range report.Remotes {
		remotes = append(remotes, r[0]+" "+r[1])
	}
	t.Row("Remotes", strings.Join(remotes, "\n"))

	if len(report.SideBranches) > 0 {
		sides := make([]string, 0, len(report.SideBranches))
		for _, sb := range report.SideBranches {
			state := "local only"
			switch {
			case sb.PullURL != "":
				state = sb.PullURL
			case sb.Pushed:
				state = "pushed"
			}
			sides = append(sides, fmt.Sprintf("%s -> %s (%s)", sb.Branch, sb.Target, state))
		}
		t.Row("Side branches", strings.Join(sides, "\n"))
	}
	return t.String()
}

// SideBranchTable renders ledger entries.
func (p *Printer) SideBranchTable(entries []flow.SideBranch) string {
	t := p.newTable("Side branch", "Target", "Created", "Pushed", "Pull request")
	for _, e := range entries {
		pushed := "no"
		if e.Pushed {
			pushed = "yes"
		}
		t.Row(e.Branch, e.Target, e.CreatedAt.Format("2006-01-02 15:04"), pushed, e.PullURL)
	}
	return t.String()
}

// StashTable renders stash entries, newest first.
func (p *Printer) StashTable(entries []git.StashEntry) string {
	t := p.newTable("Stash", "Message")
	for _, e := range entries {
		t.Row(e.Ref, e.Message)
	}
	return t.String()
}
