package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrReauthenticationRequired is matched by errors from platforms that
	// cannot refresh tokens; the user has to connect the account again.
	ErrReauthenticationRequired = errors.New("requires re-authentication")

	// ErrProfileNotResolved is returned when an operation needs the account's
	// platform user id and neither the option nor a prior GetProfile set it.
	ErrProfileNotResolved = errors.New("platform user id not resolved: call GetProfile first or pass WithPlatformUserID")
)

// ProfileFetchError is returned by GetProfile on a non-2xx vendor response.
type ProfileFetchError struct {
	Platform   Platform
	StatusCode int
	Message    string
}

func (e *ProfileFetchError) Error() string {
	return fmt.Sprintf("%s: fetch profile failed (status %d): %s", e.Platform, e.StatusCode, e.Message)
}

// ValidationError reports input that violates a platform's static
// requirements. It is raised before any network call.
type ValidationError struct {
	Platform Platform
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Platform, e.Field, e.Message)
}

// UnsupportedPlatformError is returned for identifiers with no adapter.
type UnsupportedPlatformError struct {
	Platform string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %q", e.Platform)
}

// UnsupportedCapabilityError is returned when an adapter lacks an optional
// capability such as token refresh.
type UnsupportedCapabilityError struct {
	Platform   Platform
	Capability string
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("%s does not support %s: %s", e.Platform, e.Capability, ErrReauthenticationRequired)
}

// Is lets errors.Is match ErrReauthenticationRequired.
func (e *UnsupportedCapabilityError) Is(target error) bool {
	return target == ErrReauthenticationRequired
}

// APIError is a non-2xx vendor response on an operation that has no soft
// failure path (token refresh, session lookup).
type APIError struct {
	Platform   Platform
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s failed (status %d): %s", e.Platform, e.Operation, e.StatusCode, e.Message)
}

// IsPermanent reports whether err is a caller error that retrying cannot fix.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var (
		validation  *ValidationError
		unsupported *UnsupportedPlatformError
		capability  *UnsupportedCapabilityError
	)
	switch {
	case errors.As(err, &validation),
		errors.As(err, &unsupported),
		errors.As(err, &capability),
		errors.Is(err, ErrProfileNotResolved):
		return true
	}
	return false
}
