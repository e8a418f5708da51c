package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/assistant"
	"github.com/docent-ai/docent/internal/chunker"
	"github.com/docent-ai/docent/internal/embedding"
	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/memory"
	"github.com/docent-ai/docent/internal/vecindex"
)

// writeJSON writes a JSON response with the given status code.
// Uses buffer-first strategy to ensure headers are only sent after successful
// encoding. This allows returning a proper 500 error if encoding fails.
func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected
		slog.Debug("failed to write response body", "error", err)
	}
}

// errorBody is the inner payload of the error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorEnvelope is the JSON error response: {"error": {"code", "message"}}.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// writeError writes a JSON error envelope with the given status code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// writeServiceError maps a domain error to an HTTP status and envelope.
// Unrecognized errors become an opaque 500; the detail stays in the log.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var mismatch *vecindex.DimensionMismatchError
	var genFailed *answer.GenerationFailedError

	switch {
	case errors.Is(err, assistant.ErrInput),
		errors.Is(err, knowledge.ErrInvalidTenant),
		errors.Is(err, chunker.ErrEmptyInput),
		errors.Is(err, memory.ErrMissingTenant),
		errors.Is(err, memory.ErrEmptyQuestion),
		errors.Is(err, vecindex.ErrMissingTenant),
		errors.Is(err, vecindex.ErrMissingLabel):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())

	case errors.Is(err, knowledge.ErrSourceNotFound):
		writeError(w, http.StatusNotFound, "source_not_found", err.Error())

	case errors.Is(err, memory.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())

	case errors.Is(err, vecindex.ErrIndexNotFound):
		writeError(w, http.StatusNotFound, "index_not_found", err.Error())

	case errors.As(err, &mismatch):
		writeError(w, http.StatusConflict, "dimension_mismatch", mismatch.Error())

	case errors.Is(err, assistant.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "query_timeout", err.Error())

	case errors.Is(err, embedding.ErrProviderUnavailable),
		errors.Is(err, embedding.ErrQuotaExceeded),
		errors.As(err, &genFailed):
		writeError(w, http.StatusBadGateway, "provider_failed", err.Error())

	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSON decodes a JSON request body into dst, capping the body size.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// writeDecodeError maps a body decode failure to 413 (size cap hit) or 400.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
