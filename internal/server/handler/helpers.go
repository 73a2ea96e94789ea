package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseBoolParam reads a boolean query parameter. An absent value yields the
// default; a present but unparseable value is a client error wrapping
// domain.ErrInvalidRequest, so it never reaches the aggregation pipeline.
func parseBoolParam(r *http.Request, name string, def bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: invalid %s parameter %q", domain.ErrInvalidRequest, name, v)
	}
	return b, nil
}

// parseTimeRange extracts the optional from_timestamp / to_timestamp query
// parameters (unix seconds). A nil pointer means the bound is open.
func parseTimeRange(r *http.Request) (from, to *time.Time, err error) {
	q := r.URL.Query()

	if v := q.Get("from_timestamp"); v != "" {
		secs, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return nil, nil, fmt.Errorf("%w: invalid from_timestamp %q", domain.ErrInvalidRequest, v)
		}
		t := time.Unix(secs, 0).UTC()
		from = &t
	}
	if v := q.Get("to_timestamp"); v != "" {
		secs, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return nil, nil, fmt.Errorf("%w: invalid to_timestamp %q", domain.ErrInvalidRequest, v)
		}
		t := time.Unix(secs, 0).UTC()
		to = &t
	}
	return from, to, nil
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
