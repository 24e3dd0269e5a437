package scrape

import (
	"strings"

	"github.com/cam3ron2/classroom-stats/internal/githubapi"
)

// Contributor is one repository contributor with its pull-request commit credit.
type Contributor struct {
	Login         string
	Contributions int
	// CommitsPR counts merged pull-request commits attributed to this contributor.
	CommitsPR int
}

// TotalCommits is the listing contribution count plus attributed PR commits.
func (c Contributor) TotalCommits() int {
	return c.Contributions + c.CommitsPR
}

// NewContributors converts the contributor listing, preserving its order.
func NewContributors(listed []githubapi.Contributor) []Contributor {
	contributors := make([]Contributor, 0, len(listed))
	for _, c := range listed {
		contributors = append(contributors, Contributor{Login: c.Login, Contributions: c.Contributions})
	}
	return contributors
}

// MatchesCommit reports whether commit belongs to the contributor by author
// login, author name, committer login or committer name. Logins compare
// exactly, names case-insensitively; empty values never match.
func (c Contributor) MatchesCommit(commit githubapi.RepoCommit) bool {
	if c.Login == "" {
		return false
	}
	switch {
	case commit.Author != "" && commit.Author == c.Login:
		return true
	case commit.AuthorName != "" && strings.EqualFold(commit.AuthorName, c.Login):
		return true
	case commit.Committer != "" && commit.Committer == c.Login:
		return true
	case commit.CommitterName != "" && strings.EqualFold(commit.CommitterName, c.Login):
		return true
	}
	return false
}

// AttributeCommits credits each commit to the first matching contributor in
// listing order. At most one contributor is credited per commit. It returns
// the number of commits that found an owner.
func AttributeCommits(contributors []Contributor, commits []githubapi.RepoCommit) int {
	credited := 0
	for _, commit := range commits {
		for i := range contributors {
			if contributors[i].MatchesCommit(commit) {
				contributors[i].CommitsPR++
				credited++
				break
			}
		}
	}
	return credited
}

// DedupeCommitsBySHA keeps the first occurrence of every SHA. Commits without
// a SHA are always kept.
func DedupeCommitsBySHA(commits []githubapi.RepoCommit) []githubapi.RepoCommit {
	return make(CommitSet, len(commits)).Unseen(commits)
}

// CommitSet records the commit SHAs already counted during one scrape.
type CommitSet map[string]struct{}

// Unseen returns the commits whose SHA is not yet in the set, in order, and
// adds them to it. Commits without a SHA are always returned.
func (s CommitSet) Unseen(commits []githubapi.RepoCommit) []githubapi.RepoCommit {
	fresh := make([]githubapi.RepoCommit, 0, len(commits))
	for _, commit := range commits {
		if commit.SHA != "" {
			if _, ok := s[commit.SHA]; ok {
				continue
			}
			s[commit.SHA] = struct{}{}
		}
		fresh = append(fresh, commit)
	}
	return fresh
}
