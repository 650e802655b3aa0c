// Package digest builds the bounded workspace-context summary passed to
// agents alongside task prompts. The output is capped so that a workspace
// full of large uploads cannot blow up request latency, cost, or memory.
package digest

import (
	"context"
	"fmt"
	"strings"

	"github.com/atelier-dev/atelier/pkg/workspace"
)

// Caps on the generated summary: at most maxPapers documents, at most
// maxCharsPerPaper of body excerpt each, at most maxTotalChars combined.
const (
	maxPapers        = 5
	maxCharsPerPaper = 800
	maxTotalChars    = 3500
)

// PaperLister is the slice of the store the builder reads.
type PaperLister interface {
	ListWorkspacePapers(ctx context.Context, workspaceID string) ([]*workspace.Paper, error)
}

// Build assembles a compact textual summary of the workspace's uploads.
// Returns the empty string when the workspace is empty or unknown. Store
// read errors are swallowed into an empty summary: context enrichment is
// best-effort and must never fail a task.
func Build(ctx context.Context, store PaperLister, workspaceID string) string {
	if workspaceID == "" {
		return ""
	}

	papers, err := store.ListWorkspacePapers(ctx, workspaceID)
	if err != nil || len(papers) == 0 {
		return ""
	}

	if len(papers) > maxPapers {
		papers = papers[:maxPapers]
	}

	parts := []string{"Workspace Uploads Summary:\n"}
	for _, p := range papers {
		chunk := formatPaper(p)

		candidate := append(parts, chunk)
		if len(strings.Join(candidate, "\n\n")) > maxTotalChars {
			break
		}
		parts = candidate
	}

	// Header alone means nothing fit under the budget
	if len(parts) == 1 {
		return ""
	}

	return strings.Join(parts, "\n\n")
}

// formatPaper renders one paper's contribution to the summary, with the body
// excerpt whitespace-collapsed and truncated to the per-paper cap.
func formatPaper(p *workspace.Paper) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s", p.Title)
	if p.Year != 0 {
		fmt.Fprintf(&b, " (%d)", p.Year)
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "\nURL: %s", p.URL)
	}
	if p.Abstract != "" {
		fmt.Fprintf(&b, "\nAbstract: %s", p.Abstract)
	}
	if p.Content != "" {
		body := strings.Join(strings.Fields(p.Content), " ")
		if len(body) > maxCharsPerPaper {
			body = body[:maxCharsPerPaper]
			fmt.Fprintf(&b, "\nExcerpt: %s…", body)
		} else {
			fmt.Fprintf(&b, "\nExcerpt: %s", body)
		}
	}
	return b.String()
}

// MaxChars exposes the combined budget for tests and documentation.
func MaxChars() int {
	return maxTotalChars
}
