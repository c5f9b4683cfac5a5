package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var ErrUnsupported = errors.New("operation not supported by processor")

// RemoteError carries a processor rejection verbatim. StatusCode is the HTTP
// status; a 2xx code means the call succeeded but the processor reported a
// non-success outcome.
type RemoteError struct {
	Processor  string
	Op         string
	StatusCode int
	Payload    json.RawMessage
	Message    string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Processor, e.Op, e.StatusCode, msg)
}

// UserCorrectable reports whether the buyer can fix the input and try again
// (for example an invalid address), as opposed to auth, throttling or
// processor-side failures.
func (e *RemoteError) UserCorrectable() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// NewRemoteError builds a RemoteError from a non-success response, pulling a
// human-readable message out of the common processor error shapes.
func NewRemoteError(processor, op string, res Response) *RemoteError {
	payload := RawPayload(res.Body)

	var shape struct {
		Message          string `json:"message"`
		Name             string `json:"name"`
		Error            any    `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"errorCode"`
	}
	_ = json.Unmarshal(res.Body, &shape)

	msg := shape.Message
	if msg == "" {
		msg = shape.ErrorDescription
	}
	if msg == "" {
		if s, ok := shape.Error.(string); ok {
			msg = s
		}
	}
	if msg == "" {
		msg = shape.Name
	}
	if shape.ErrorCode != "" && msg != "" {
		msg = shape.ErrorCode + " " + msg
	}

	return &RemoteError{
		Processor:  processor,
		Op:         op,
		StatusCode: res.StatusCode,
		Payload:    payload,
		Message:    msg,
	}
}

// RawPayload returns b as JSON, quoting it when the processor sent something
// that is not JSON.
func RawPayload(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return json.RawMessage(append([]byte(nil), b...))
	}
	quoted, _ := json.Marshal(string(b))
	return quoted
}
