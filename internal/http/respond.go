package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"pocketfin/internal/ledger"
)

// envelope is the uniform response shape: {"ok":true,...} on success,
// {"ok":false,"error":...} on failure.
type envelope map[string]any

// JSONP callback names are restricted to identifier-ish characters so a
// crafted callback cannot inject script into the response.
var callbackRe = regexp.MustCompile(`[^\w$.]`)

func callbackName(r *http.Request) string {
	return callbackRe.ReplaceAllString(r.URL.Query().Get("callback"), "")
}

// writeOK writes a success envelope. payload keys are merged in next to ok.
func writeOK(w http.ResponseWriter, r *http.Request, payload envelope) {
	body := envelope{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	writeEnvelope(w, r, http.StatusOK, body)
}

// writeError writes a failure envelope with the given status.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeEnvelope(w, r, status, envelope{"ok": false, "error": msg})
}

// writeLedgerError maps ledger failures to HTTP statuses. Unexpected errors
// surface as a generic 500 so store internals stay out of responses.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrWritesDisabled):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.ErrorContext(r.Context(), "Marshal response failed", "error", err)
		http.Error(w, `{"ok":false,"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	// JSONP clients cannot observe status codes, the envelope's ok field
	// is the only signal they get.
	if cb := callbackName(r); cb != "" && r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(cb + "("))
		_, _ = w.Write(data)
		_, _ = w.Write([]byte(");"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
