// Package sqlguard decides whether generated SQL may reach the store. Only the
// Gate can produce a VettedQuery, so the executor never sees unchecked text.
package sqlguard

import (
	"fmt"
	"strings"

	"github.com/querycraft/querycraft/internal/qerr"
)

// ReasonReadOnly is the rejection reason of the default prefix check.
const ReasonReadOnly = "only read-only queries are allowed"

type Mode string

const (
	ModePrefix Mode = "prefix"
	ModeStrict Mode = "strict"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModePrefix:
		return ModePrefix, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("unsupported guard mode %q", raw)
	}
}

// VettedQuery is a single read statement terminated by exactly one ';'.
type VettedQuery struct {
	text string
}

func (q VettedQuery) String() string { return q.text }
func (q VettedQuery) IsZero() bool   { return q.text == "" }

type Gate struct {
	mode     Mode
	onReject func(mode Mode, reason string)
}

type Option func(*Gate)

// WithRejectHook registers a callback invoked for every rejected statement.
func WithRejectHook(fn func(mode Mode, reason string)) Option {
	return func(g *Gate) { g.onReject = fn }
}

func New(mode Mode, opts ...Option) *Gate {
	if mode == "" {
		mode = ModePrefix
	}
	g := &Gate{mode: mode}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Mode() Mode { return g.mode }

// Vet accepts text that starts with SELECT, ignoring case and surrounding
// whitespace, and normalizes its terminator. In strict mode the statement is
// also tokenized and refused when it chains statements, carries comments or
// mentions a mutating keyword.
func (g *Gate) Vet(text string) (VettedQuery, error) {
	normalized := Normalize(text)
	if !strings.HasPrefix(strings.ToUpper(normalized), "SELECT") {
		return VettedQuery{}, g.reject(ReasonReadOnly)
	}
	if g.mode == ModeStrict {
		if reason := inspect(normalized); reason != "" {
			return VettedQuery{}, g.reject(reason)
		}
	}
	return VettedQuery{text: normalized}, nil
}

func (g *Gate) reject(reason string) error {
	if g.onReject != nil {
		g.onReject(g.mode, reason)
	}
	return qerr.New(qerr.RejectedQuery, reason)
}

// Normalize trims whitespace, drops every trailing terminator and appends a
// single ';'. Blank input stays blank.
func Normalize(text string) string {
	trimmed := strings.TrimSpace(text)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	if trimmed == "" {
		return ""
	}
	return trimmed + ";"
}
