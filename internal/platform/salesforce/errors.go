package salesforce

import (
	"fmt"
	"strings"
)

// MissingCredentialsError means the resolved credentials lack a username or
// password. It is an expected condition that selects simulation mode.
type MissingCredentialsError struct {
	Source Source
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("salesforce credentials not configured (source %s)", e.Source)
}

// RemoteAuthError is a login rejection or an expired session.
type RemoteAuthError struct {
	Code    string
	Message string
}

func (e *RemoteAuthError) Error() string {
	if e.Code == "" {
		return "salesforce authentication failed: " + e.Message
	}
	return fmt.Sprintf("salesforce authentication failed: %s: %s", e.Code, e.Message)
}

// RemoteCreateError is a record create rejected by Salesforce.
type RemoteCreateError struct {
	Errors []string
}

func (e *RemoteCreateError) Error() string {
	return "salesforce creation failed: " + strings.Join(e.Errors, ", ")
}

// NotConnectedError is returned by read operations that have no simulated
// fallback when no live session exists.
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string { return "not connected to Salesforce" }

// Is lets errors.Is match any *NotConnectedError.
func (e *NotConnectedError) Is(target error) bool {
	_, ok := target.(*NotConnectedError)
	return ok
}

// ErrNotConnected is the value returned by GetReferrals when disconnected.
var ErrNotConnected error = &NotConnectedError{}
