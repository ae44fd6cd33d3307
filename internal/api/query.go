package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/querycraft/querycraft/internal/export"
	"github.com/querycraft/querycraft/internal/observability"
	"github.com/querycraft/querycraft/internal/pipeline"
	"github.com/querycraft/querycraft/internal/schema"
)

const defaultMaxBodyBytes = 64 << 10

type queryRequest struct {
	Text string `json:"text"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	envelope, ok := answer(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, envelope)
}

// handleExport runs the same pipeline but returns the rows as a Parquet
// file. Failed questions still get the JSON envelope.
func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	envelope, ok := answer(deps, w, r)
	if !ok {
		return
	}
	if !envelope.OK() || envelope.Data == nil {
		writeJSON(w, http.StatusOK, envelope)
		return
	}

	var buf bytes.Buffer
	stats, err := export.WriteParquet(&buf, *envelope.Data)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "failed to encode result as parquet", false, map[string]any{
			"details":   err.Error(),
			"sql_query": envelope.SQLQuery,
		})
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="result.parquet"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-QueryCraft-Rows", strconv.Itoa(stats.Rows))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil && deps.Logger != nil {
		observability.RequestLogger(r.Context(), deps.Logger).Warn("write parquet export failed", "error", err)
	}
}

func answer(deps Dependencies, w http.ResponseWriter, r *http.Request) (pipeline.Envelope, bool) {
	if deps.Queries == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query pipeline is not configured", false, nil)
		return pipeline.Envelope{}, false
	}

	limit := deps.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	var request queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return pipeline.Envelope{}, false
	}
	if strings.TrimSpace(request.Text) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TEXT_REQUIRED", "text is required", false, nil)
		return pipeline.Envelope{}, false
	}

	return deps.Queries.Handle(r.Context(), request.Text), true
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema provider is not configured", false, nil)
		return
	}
	description := deps.Schema.Describe()
	writeJSON(w, http.StatusOK, map[string]any{
		"schema": description.String(),
		"loaded": description != schema.Unavailable,
	})
}
