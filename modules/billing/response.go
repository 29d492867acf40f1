package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/productphotostudio/billing/pkg/logger"
	"github.com/productphotostudio/billing/pkg/requestid"
)

// maxJSONBody caps account endpoint request bodies.
const maxJSONBody = 16 << 10

// Envelope is the JSON body of every billing endpoint response.
type Envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Data: data})
}

// respondError writes the error envelope. Client errors log at warn level,
// server errors at error level with the cause attached. The cause is never
// echoed for 5xx responses.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) HTTPError {
	httpErr := errorStatus(err)
	reqID := requestid.FromContext(r.Context())

	level := slog.LevelWarn
	message := err.Error()
	if httpErr.Code >= http.StatusInternalServerError {
		level = slog.LevelError
		message = http.StatusText(httpErr.Code)
	}
	log.LogAttrs(r.Context(), level, "billing request failed",
		logger.Error(err),
		logger.RequestID(reqID),
		slog.Int("status_code", httpErr.Code),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(httpErr.Code)
	_ = json.NewEncoder(w).Encode(Envelope{Error: &ErrorDetail{
		Code:      httpErr.Key,
		Message:   message,
		RequestID: reqID,
	}})
	return httpErr
}

// decodeJSON strictly decodes a single JSON object from the request body.
// Unknown fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("%w: expected application/json", ErrUnsupportedMediaType)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", ErrInvalidJSON)
		default:
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
	}
	return nil
}
