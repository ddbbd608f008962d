package httpapi

import (
	"encoding/json"
	"net/http"
)

// ErrorEnvelope is the JSON body of every non-2xx API response.
// Meta carries scalar context keyed by name; Details lists the items the
// client has to act on, such as the headers found in a rejected upload.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
	Details []string          `json:"details,omitempty"`
}

// ErrorOption decorates an envelope built by NewError.
type ErrorOption func(*ErrorEnvelope)

// WithMeta sets one meta key. Empty values are dropped.
func WithMeta(key, value string) ErrorOption {
	return func(e *ErrorEnvelope) {
		if value == "" {
			return
		}
		if e.Meta == nil {
			e.Meta = make(map[string]string)
		}
		e.Meta[key] = value
	}
}

// WithDetails appends to the envelope's detail list.
func WithDetails(details ...string) ErrorOption {
	return func(e *ErrorEnvelope) {
		e.Details = append(e.Details, details...)
	}
}

func NewError(code, message string, opts ...ErrorOption) *ErrorEnvelope {
	e := &ErrorEnvelope{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ErrorEnvelope) Error() string { return e.Code + ": " + e.Message }

// Write sends the envelope with the given status.
func (e *ErrorEnvelope) Write(w http.ResponseWriter, status int) error {
	return WriteJSON(w, status, e)
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}
