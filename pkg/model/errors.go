package model

import (
	"encoding/json"
	"strings"
)

// APIError is the error body returned by the blog backend. The backend
// sends either {"detail": "message"} or, for request validation failures,
// {"detail": [{"loc": [...], "msg": "...", "type": "..."}]}.
type APIError struct {
	Detail string       `json:"-"`
	Fields []FieldError `json:"-"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.String())
	}
	return strings.Join(msgs, "; ")
}

// FieldError describes a validation error on a specific request field.
type FieldError struct {
	Loc     []any  `json:"loc,omitempty"`
	Message string `json:"msg"`
	Type    string `json:"type,omitempty"`
}

// Field returns the dotted location of the error, skipping the "body" /
// "query" prefix.
func (f FieldError) Field() string {
	parts := make([]string, 0, len(f.Loc))
	for i, p := range f.Loc {
		s, ok := p.(string)
		if !ok {
			continue
		}
		if i == 0 && (s == "body" || s == "query" || s == "path") {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}

func (f FieldError) String() string {
	if field := f.Field(); field != "" {
		return field + ": " + f.Message
	}
	return f.Message
}

// UnmarshalJSON accepts both shapes of "detail".
func (e *APIError) UnmarshalJSON(data []byte) error {
	var raw struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Detail) == 0 || string(raw.Detail) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Detail, &s); err == nil {
		e.Detail = s
		return nil
	}
	return json.Unmarshal(raw.Detail, &e.Fields)
}

// ParseAPIError decodes a backend error body. It returns nil when the body
// carries no detail.
func ParseAPIError(body []byte) *APIError {
	var e APIError
	if err := json.Unmarshal(body, &e); err != nil {
		return nil
	}
	if e.Detail == "" && len(e.Fields) == 0 {
		return nil
	}
	return &e
}
