package nl2sql

import (
	"strings"

	"github.com/querycraft/querycraft/internal/schema"
)

// BuildPrompt fills the fixed four-section prompt. Headings, wording and
// order are what the deployed model was tuned against and must not change.
// The question is inserted verbatim.
func BuildPrompt(description schema.Description, question string) string {
	var b strings.Builder
	b.Grow(320 + len(description) + len(question))
	b.WriteString("\n### Task\n")
	b.WriteString("Generate a single, executable SQL query that answers the following question.\n")
	b.WriteString("Only output the SQL query and nothing else.\n")
	b.WriteString("\n### Database Schema\n")
	b.WriteString("The query will be run on a database with the following schema:\n")
	b.WriteString(string(description))
	b.WriteString("\n\n### Question\n")
	b.WriteString(question)
	b.WriteString("\n\n### SQL Query\n")
	return b.String()
}
