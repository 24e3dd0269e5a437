package scrape

import (
	"context"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/cam3ron2/classroom-stats/internal/githubapi"
)

const (
	bytesPerMB       = 1024 * 1024
	workflowDir      = ".github/workflows/"
	cloudbuildFile   = "cloudbuild.yaml"
	actionsPushEvent = "push"
)

// ContentSummary holds the static indicators derived from one repository.
type ContentSummary struct {
	NumDockerFiles      int
	NumPythonFiles      int
	NumWorkflowFiles    int
	HasRequirementsFile bool
	HasCloudbuild       bool
	UsingDVC            bool
	// RepoSizeMB sums the sizes of entries that report one.
	RepoSizeMB     float64
	ReadmeLength   int
	ActionsPassing bool
}

// SummarizeTree fills the tree-derived indicators of a ContentSummary.
func SummarizeTree(entries []githubapi.TreeEntry) ContentSummary {
	var (
		summary   ContentSummary
		sizeBytes int64
	)
	for _, entry := range entries {
		p := entry.Path
		if isDockerPath(p) {
			summary.NumDockerFiles++
		}
		if strings.Contains(p, ".py") {
			summary.NumPythonFiles++
		}
		if isWorkflowPath(p) {
			summary.NumWorkflowFiles++
		}
		if strings.Contains(p, "requirements.txt") {
			summary.HasRequirementsFile = true
		}
		if path.Base(p) == cloudbuildFile {
			summary.HasCloudbuild = true
		}
		if strings.Contains(p, ".dvc") {
			summary.UsingDVC = true
		}
		if entry.Size != nil {
			sizeBytes += *entry.Size
		}
	}
	summary.RepoSizeMB = float64(sizeBytes) / bytesPerMB
	return summary
}

func isDockerPath(p string) bool {
	return strings.Contains(p, "Dockerfile") || strings.Contains(p, ".dockerfile")
}

func isWorkflowPath(p string) bool {
	return strings.HasPrefix(p, workflowDir) && (strings.HasSuffix(p, ".yml") || strings.HasSuffix(p, ".yaml"))
}

// InspectContent derives the content summary for an accessible repository.
func InspectContent(ctx context.Context, source RepositoryDataSource, ref *RepositoryRef) (ContentSummary, error) {
	entries, err := ref.Tree(ctx)
	if err != nil {
		return ContentSummary{}, err
	}
	summary := SummarizeTree(entries)

	owner, repo, err := ref.OwnerRepo()
	if err != nil {
		return ContentSummary{}, err
	}

	readme, err := source.GetReadme(ctx, owner, repo)
	if err != nil {
		return ContentSummary{}, err
	}
	switch readme.Status {
	case githubapi.EndpointStatusNotFound:
		summary.ReadmeLength = 0
	default:
		if err := githubapi.RequireOK("get readme", readme.Status); err != nil {
			return ContentSummary{}, err
		}
		summary.ReadmeLength = ReadmeWordCount(readme.Content)
	}

	branch, err := ref.DefaultBranch(ctx)
	if err != nil {
		return ContentSummary{}, err
	}
	summary.ActionsPassing, err = actionsPassing(ctx, source, owner, repo, branch)
	if err != nil {
		return ContentSummary{}, err
	}
	return summary, nil
}

// actionsPassing requires every push run on the branch head commit to have
// completed successfully. No matching runs counts as passing, and so does an
// empty repository, which has no head commit.
func actionsPassing(ctx context.Context, source RepositoryDataSource, owner, repo, branch string) (bool, error) {
	head, err := source.GetBranchCommit(ctx, owner, repo, branch)
	if err != nil {
		return false, err
	}
	if head.Status == githubapi.EndpointStatusConflict {
		return true, nil
	}
	if err := githubapi.RequireOK("get branch commit", head.Status); err != nil {
		return false, err
	}

	runs, err := source.ListWorkflowRuns(ctx, owner, repo, branch, actionsPushEvent)
	if err != nil {
		return false, err
	}
	if err := githubapi.RequireOK("list workflow runs", runs.Status); err != nil {
		return false, err
	}

	for _, run := range runs.Runs {
		if run.HeadSHA == head.SHA && !run.Succeeded() {
			return false, nil
		}
	}
	return true, nil
}

// ReadmeWordCount strips markdown formatting and counts whitespace-delimited words.
func ReadmeWordCount(markdown string) int {
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var plain strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if node.Type() == ast.TypeBlock {
			plain.WriteByte(' ')
		}
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Text:
			plain.Write(n.Segment.Value(source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				plain.WriteByte(' ')
			}
		case *ast.String:
			plain.Write(n.Value)
		case *ast.AutoLink:
			plain.Write(n.Label(source))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				plain.Write(segment.Value(source))
				plain.WriteByte(' ')
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return len(strings.Fields(plain.String()))
}
