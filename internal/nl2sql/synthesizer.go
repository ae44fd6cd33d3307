// Package nl2sql turns a natural-language question into a vetted SQL
// statement: it builds the prompt, asks the inference engine and hands the
// cleaned-up text to the safety gate.
package nl2sql

import (
	"context"
	"log/slog"
	"strings"

	"github.com/querycraft/querycraft/internal/inference"
	"github.com/querycraft/querycraft/internal/qerr"
	"github.com/querycraft/querycraft/internal/recovery"
	"github.com/querycraft/querycraft/internal/schema"
	"github.com/querycraft/querycraft/internal/sqlguard"
)

const DefaultMaxTokens = 256

// DefaultStop ends generation at a blank line or at the first terminator.
var DefaultStop = []string{"\n\n", ";"}

type SchemaSource interface {
	Describe() schema.Description
}

type Config struct {
	MaxTokens   int
	Temperature float64
}

type Synthesizer struct {
	engine inference.Engine
	schema SchemaSource
	gate   *sqlguard.Gate
	params inference.Params
	logger *slog.Logger
}

// NewSynthesizer wires the stage together. A nil engine is allowed and means
// the model failed to load; every Synthesize call then reports
// ModelUnavailable.
func NewSynthesizer(engine inference.Engine, source SchemaSource, gate *sqlguard.Gate, cfg Config, logger *slog.Logger) *Synthesizer {
	if gate == nil {
		gate = sqlguard.New(sqlguard.ModePrefix)
	}
	if logger == nil {
		logger = slog.Default()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Synthesizer{
		engine: engine,
		schema: source,
		gate:   gate,
		params: inference.Params{
			MaxTokens:   maxTokens,
			Stop:        append([]string(nil), DefaultStop...),
			Temperature: cfg.Temperature,
		},
		logger: logger,
	}
}

// Available reports whether an engine is loaded.
func (s *Synthesizer) Available() bool { return s.engine != nil }

func (s *Synthesizer) Synthesize(ctx context.Context, question string) (sqlguard.VettedQuery, error) {
	if s.engine == nil {
		return sqlguard.VettedQuery{}, qerr.New(qerr.ModelUnavailable, "SQL generation model is not loaded.")
	}

	var description schema.Description
	if s.schema != nil {
		description = s.schema.Describe()
	}
	prompt := BuildPrompt(description, question)

	raw, err := recovery.RecoverToValue(s.logger, "generate", func() (string, error) {
		return s.engine.Generate(ctx, prompt, s.params)
	})
	if err != nil {
		return sqlguard.VettedQuery{}, qerr.Wrap(qerr.InferenceFailure, "engine call failed", err)
	}

	candidate := Cleanup(raw)
	s.logger.Debug("generated candidate sql", "sql", candidate)
	return s.gate.Vet(candidate)
}

// Cleanup extracts the statement from raw engine output: markdown fences are
// dropped, whitespace trimmed and a terminator appended when missing.
func Cleanup(raw string) string {
	sql := stripMarkdownSQL(raw)
	if sql == "" {
		return ""
	}
	if !strings.HasSuffix(sql, ";") {
		sql += ";"
	}
	return sql
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
