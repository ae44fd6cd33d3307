package nl2sql

import (
	"strings"
	"testing"

	"github.com/querycraft/querycraft/internal/schema"
)

func TestBuildPromptMatchesTemplate(t *testing.T) {
	description := schema.Description("Table 'Artist':\nCREATE TABLE Artist (ArtistId INTEGER, Name NVARCHAR(120))\n")
	got := BuildPrompt(description, "How many artists are there?")

	want := "\n### Task\n" +
		"Generate a single, executable SQL query that answers the following question.\n" +
		"Only output the SQL query and nothing else.\n" +
		"\n" +
		"### Database Schema\n" +
		"The query will be run on a database with the following schema:\n" +
		"Table 'Artist':\nCREATE TABLE Artist (ArtistId INTEGER, Name NVARCHAR(120))\n" +
		"\n\n" +
		"### Question\n" +
		"How many artists are there?\n" +
		"\n" +
		"### SQL Query\n"
	if got != want {
		t.Fatalf("BuildPrompt() =\n%q\nwant\n%q", got, want)
	}
}

func TestBuildPromptKeepsQuestionVerbatim(t *testing.T) {
	question := "List tracks where Name = '%s'; DROP TABLE x -- {schema}"
	got := BuildPrompt(schema.Unavailable, question)
	if !strings.Contains(got, "\n### Question\n"+question+"\n") {
		t.Fatalf("question not embedded verbatim: %q", got)
	}
	if !strings.Contains(got, "schema:\nError: Could not load schema.\n") {
		t.Fatalf("sentinel schema not embedded: %q", got)
	}
}

func TestBuildPromptSectionOrder(t *testing.T) {
	got := BuildPrompt("S", "Q")
	last := -1
	for _, heading := range []string{"### Task", "### Database Schema", "### Question", "### SQL Query"} {
		idx := strings.Index(got, heading)
		if idx <= last {
			t.Fatalf("heading %q out of order in %q", heading, got)
		}
		last = idx
	}
}
