package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FieldErrors is the closed error shape for the backend's field-keyed
// validation responses. The backend returns loose JSON maps; parsing them
// into named optional fields keeps every consumer off dynamic key lookups.
type FieldErrors struct {
	Email           []string `json:"email,omitempty"`
	Password        []string `json:"password,omitempty"`
	ConfirmPassword []string `json:"confirm_password,omitempty"`
	NonField        []string `json:"non_field_errors,omitempty"`
}

// First returns the first non-empty message, checked in a fixed precedence
// order: email, password, confirmPassword, nonField. Returns "" when no
// field carries a message.
func (f FieldErrors) First() string {
	for _, msgs := range [][]string{f.Email, f.Password, f.ConfirmPassword, f.NonField} {
		if len(msgs) > 0 && msgs[0] != "" {
			return msgs[0]
		}
	}
	return ""
}

// Empty reports whether no field carries a message.
func (f FieldErrors) Empty() bool {
	return f.First() == ""
}

// Error is a failed backend response. A zero StatusCode means the request
// never produced a response (transport failure).
type Error struct {
	StatusCode int
	Detail     string      // "detail" body key, if present
	Fields     FieldErrors // field-keyed validation messages, if present
	Body       string      // raw body, for logging
}

// Error implements the error interface with the most specific message
// available: field errors first, then detail, then a generic status line.
func (e *Error) Error() string {
	if msg := e.Fields.First(); msg != "" {
		return msg
	}
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// IsStatus reports whether err is a backend *Error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// parseError builds an *Error from a non-2xx response body.
// The body may be a {"detail": ...} object, a field-keyed error map with
// string-or-list values, or not JSON at all; all three shapes are handled.
func parseError(status int, body []byte) *Error {
	apiErr := &Error{
		StatusCode: status,
		Body:       strings.TrimSpace(string(body)),
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return apiErr
	}

	if d, ok := raw["detail"]; ok {
		var detail string
		if err := json.Unmarshal(d, &detail); err == nil {
			apiErr.Detail = detail
		}
	}

	apiErr.Fields = FieldErrors{
		Email:           messageList(raw["email"]),
		Password:        messageList(raw["password"]),
		ConfirmPassword: messageList(raw["confirm_password"]),
		NonField:        messageList(raw["non_field_errors"]),
	}

	return apiErr
}

// messageList decodes a field value that may be a JSON list of strings or a
// single string.
func messageList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}

	return nil
}
