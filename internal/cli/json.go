package cli

import (
	"encoding/json"
	"io"
)

// Response is the standard JSON envelope for all CLI output.
type Response struct {
	OK       bool        `json:"ok"`
	Data     interface{} `json:"data,omitempty"`
	Error    *ErrorInfo  `json:"error,omitempty"`
	Warnings []Warning   `json:"warnings,omitempty"`
	Meta     *Meta       `json:"meta,omitempty"`
}

// ErrorInfo contains structured error information.
type ErrorInfo struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Warning represents a non-fatal warning.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
}

// Meta contains metadata about the response.
type Meta struct {
	Count       int   `json:"count,omitempty"`
	QueryTimeMs int64 `json:"query_time_ms,omitempty"`
}

// writeJSON writes the response as indented JSON.
func writeJSON(w io.Writer, resp Response) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}

// outputSuccess writes a successful JSON response.
func (inv *Invocation) outputSuccess(data interface{}, meta *Meta) {
	writeJSON(inv.Out, Response{
		OK:       true,
		Data:     data,
		Warnings: inv.warnings,
		Meta:     meta,
	})
}

// errorResponse builds the JSON envelope for a failed invocation.
func errorResponse(e *Error) Response {
	return Response{
		OK: false,
		Error: &ErrorInfo{
			Code:       e.Code,
			Message:    e.Error(),
			Details:    e.Details,
			Suggestion: e.Suggestion,
		},
	}
}
