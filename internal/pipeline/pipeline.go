// Package pipeline answers one question end to end. Handle always returns an
// Envelope: every failure of synthesis or execution ends up in its Error
// field, never as a panic or a returned error.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/querycraft/querycraft/internal/observability"
	"github.com/querycraft/querycraft/internal/qerr"
	"github.com/querycraft/querycraft/internal/recovery"
	"github.com/querycraft/querycraft/internal/sqlguard"
	"github.com/querycraft/querycraft/internal/store"
)

// Envelope is the uniform response for one question. SQLQuery is set
// whenever synthesis succeeded, even if execution then failed.
type Envelope struct {
	SQLQuery string
	Data     *store.ResultSet
	Error    string
}

func (e Envelope) OK() bool { return e.Error == "" }

func (e Envelope) MarshalJSON() ([]byte, error) {
	var errText *string
	if e.Error != "" {
		errText = &e.Error
	}
	return json.Marshal(struct {
		SQLQuery string           `json:"sql_query"`
		Data     *store.ResultSet `json:"data"`
		Error    *string          `json:"error"`
	}{
		SQLQuery: e.SQLQuery,
		Data:     e.Data,
		Error:    errText,
	})
}

type Synthesizer interface {
	Synthesize(ctx context.Context, question string) (sqlguard.VettedQuery, error)
}

type Executor interface {
	Query(ctx context.Context, query sqlguard.VettedQuery) (store.ResultSet, error)
}

// Outcome is the terminal state of one request, used as a metrics label.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeModelUnavailable Outcome = "model_unavailable"
	OutcomeInferenceFailure Outcome = "inference_failure"
	OutcomeRejected         Outcome = "rejected_query"
	OutcomeStoreUnavailable Outcome = "store_unavailable"
	OutcomeExecutionError   Outcome = "execution_error"
)

type Service struct {
	synthesizer Synthesizer
	executor    Executor
	logger      *slog.Logger
}

func NewService(synthesizer Synthesizer, executor Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{synthesizer: synthesizer, executor: executor, logger: logger}
}

func (s *Service) Handle(ctx context.Context, question string) Envelope {
	logger := observability.RequestLogger(ctx, s.logger)

	synthStart := time.Now()
	vetted, err := recovery.RecoverToValue(logger, "synthesize", func() (sqlguard.VettedQuery, error) {
		return s.synthesizer.Synthesize(ctx, question)
	})
	if err != nil {
		kind := synthesisKind(err)
		outcome := outcomeFor(kind)
		observability.ObserveInference(string(outcome), time.Since(synthStart))
		return s.finish(logger, outcome, Envelope{Error: describe(kind, err)}, err)
	}
	observability.ObserveInference("vetted", time.Since(synthStart))

	execStart := time.Now()
	result, err := recovery.RecoverToValue(logger, "execute", func() (store.ResultSet, error) {
		return s.executor.Query(ctx, vetted)
	})
	if err != nil {
		kind := executionKind(err)
		outcome := outcomeFor(kind)
		observability.ObserveExecution(string(outcome), time.Since(execStart))
		return s.finish(logger, outcome, Envelope{SQLQuery: vetted.String(), Error: describe(kind, err)}, err)
	}
	observability.ObserveExecution(string(OutcomeCompleted), time.Since(execStart))

	return s.finish(logger, OutcomeCompleted, Envelope{SQLQuery: vetted.String(), Data: &result}, nil)
}

func (s *Service) finish(logger *slog.Logger, outcome Outcome, envelope Envelope, err error) Envelope {
	observability.ObserveRequest(string(outcome))
	attrs := []any{"outcome", string(outcome)}
	if envelope.SQLQuery != "" {
		attrs = append(attrs, "sql", envelope.SQLQuery)
	}
	switch {
	case err == nil:
		attrs = append(attrs, "rows", len(envelope.Data.Rows))
		logger.Info("question answered", attrs...)
	case outcome == OutcomeRejected || outcome == OutcomeExecutionError:
		logger.Info("question not answered", append(attrs, "error", err)...)
	default:
		logger.Warn("question failed", append(attrs, "error", err)...)
	}
	return envelope
}

// synthesisKind maps errors from the synthesis stage. Anything untyped, a
// recovered panic included, counts as an inference failure.
func synthesisKind(err error) qerr.Kind {
	switch kind := qerr.KindOf(err); kind {
	case qerr.ModelUnavailable, qerr.InferenceFailure, qerr.RejectedQuery:
		return kind
	default:
		return qerr.InferenceFailure
	}
}

// executionKind maps errors from the execution stage. Untyped errors are
// treated as the store being unavailable.
func executionKind(err error) qerr.Kind {
	switch kind := qerr.KindOf(err); kind {
	case qerr.StoreUnavailable, qerr.ExecutionError:
		return kind
	default:
		return qerr.StoreUnavailable
	}
}

func outcomeFor(kind qerr.Kind) Outcome {
	switch kind {
	case qerr.ModelUnavailable:
		return OutcomeModelUnavailable
	case qerr.InferenceFailure:
		return OutcomeInferenceFailure
	case qerr.RejectedQuery:
		return OutcomeRejected
	case qerr.StoreUnavailable:
		return OutcomeStoreUnavailable
	default:
		return OutcomeExecutionError
	}
}

// describe renders the user-facing message with a prefix naming the failed
// stage. Gate rejections and store errors already read well and pass through.
func describe(kind qerr.Kind, err error) string {
	message := err.Error()
	switch kind {
	case qerr.ModelUnavailable:
		return "AI Model Error: " + message
	case qerr.InferenceFailure:
		return "AI Error: " + message
	case qerr.StoreUnavailable:
		return "Database Error: " + message
	default:
		return message
	}
}
