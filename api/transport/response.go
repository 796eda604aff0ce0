package transport

import (
	"encoding/json"
	"fmt"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// Meta carries non-fatal conditions alongside a successful payload.
type Meta struct {
	Warnings []string `json:"warnings,omitempty"`
}

// SessionResponse is the public view of an authenticated session.
type SessionResponse struct {
	AccessToken string      `json:"access_token,omitempty"`
	SessionID   string      `json:"session_id,omitempty"`
	ExpiresAt   string      `json:"expires_at,omitempty"`
	User        interface{} `json:"user,omitempty"`
	State       string      `json:"state,omitempty"`
}

type ProgressResponse struct {
	SprintID string  `json:"sprintId"`
	Progress float64 `json:"progress"`
	Percent  int     `json:"percent"`
}

type DashboardResponse struct {
	Counts   map[string]int `json:"counts"`
	Total    int            `json:"total"`
	Upcoming int            `json:"upcoming"`
	Sprints  int            `json:"sprints"`
}

// RawEnvelope is the decoding counterpart of Envelope.
type RawEnvelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  json.RawMessage `json:"error"`
}

// Decode parses body and unmarshals its data into out when out is non-nil.
// Error envelopes are returned as *APIError.
func Decode(body []byte, out interface{}) error {
	var env RawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Status != "success" {
		var msg string
		if err := json.Unmarshal(env.Error, &msg); err != nil {
			msg = string(env.Error)
		}
		return &APIError{Code: env.Code, Message: msg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// APIError is an error envelope received from a remote service.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
