package merge

import (
	"fmt"
	"strings"
	"time"

	"github.com/ridgeline-dev/conductor/pkg/models"
)

// RenderDocument builds the Markdown merge-plan document: one stanza
// per feature in the order Plan computed. Features with a recorded PR
// url just list it; features with none get a manual-merge stanza
// spelling out the branch to merge by hand.
func RenderDocument(order []string, doc *models.StateDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Merge Plan\n\nGenerated %s\n\n", time.Now().UTC().Format(time.RFC3339))

	if len(order) == 0 {
		b.WriteString("No completed features to merge.\n")
		return b.String()
	}

	for i, id := range order {
		s := doc.Features[id]
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, id)
		if s == nil {
			b.WriteString("_no state record found_\n\n")
			continue
		}
		fmt.Fprintf(&b, "- branch: `%s`\n", s.Branch)
		if s.PRURL != "" {
			fmt.Fprintf(&b, "- pull request: %s\n\n", s.PRURL)
			continue
		}
		b.WriteString("- pull request: none\n\n")
		fmt.Fprintf(&b, "> Manual merge required: no pull request was recorded for this feature.\n")
		fmt.Fprintf(&b, "> Merge branch `%s` into the integration branch directly.\n\n", s.Branch)
	}

	return b.String()
}
