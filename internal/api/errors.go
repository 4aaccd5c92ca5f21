package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrOffline is returned when a sync or import is attempted with no
// connectivity. It is a precondition failure: nothing was attempted, and the
// caller must retry after connectivity returns.
var ErrOffline = errors.New("offline: remote API is unreachable")

// RemoteError is a non-2xx response from the remote API.
type RemoteError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: server returned %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: server returned %d", e.Method, e.Path, e.StatusCode)
}

// newRemoteError drains the response body and extracts the server's error
// message. Bodies are either {"message": "..."} / {"error": "..."} JSON or
// plain text.
func newRemoteError(method, path string, resp *http.Response) *RemoteError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := strings.TrimSpace(string(raw))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			message = payload.Message
		} else if payload.Error != "" {
			message = payload.Error
		}
	}

	return &RemoteError{
		StatusCode: resp.StatusCode,
		Method:     method,
		Path:       path,
		Message:    message,
	}
}

// IsNotFound reports whether err is a 404 from the remote API. Adapters treat
// a 404 on delete as "already gone", which is success.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// IsAlreadyExists reports whether err is the server saying the record already
// exists: a 409, or a 400 whose message contains "already exists" /
// "already in use". This means a previous push succeeded but the local status
// update was lost, so the caller should mark the record synced rather than
// retry.
func IsAlreadyExists(err error) bool {
	var re *RemoteError
	if !errors.As(err, &re) {
		return false
	}
	if re.StatusCode == http.StatusConflict {
		return true
	}
	if re.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(re.Message)
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "already in use")
}

// IsRemoteRejected reports whether err is any non-2xx server response.
func IsRemoteRejected(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
