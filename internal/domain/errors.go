package domain

import (
	"fmt"

	"golang.org/x/xerrors"
)

// ErrNotFound indicates an unknown project or file
type ErrNotFound struct {
	What string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.ID)
}

// ErrInvalidPath indicates a path that would leave the project root
type ErrInvalidPath struct {
	Path   string
	Reason string
}

func (e *ErrInvalidPath) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// ErrInvalidInput indicates a malformed value or an empty required field
type ErrInvalidInput struct {
	Field   string
	Message string
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ErrUnsupportedType indicates a write to a path with a disallowed extension
type ErrUnsupportedType struct {
	Path string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Path)
}

// ErrMissingInput indicates an absent required upload field
type ErrMissingInput struct {
	Field string
}

func (e *ErrMissingInput) Error() string {
	return fmt.Sprintf("missing required input: %s", e.Field)
}

// ErrConfiguration indicates a missing credential or setting
type ErrConfiguration struct {
	Setting string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("server is not configured: %s is not set", e.Setting)
}

// ErrPayloadTooLarge indicates content over a provider or server limit
type ErrPayloadTooLarge struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *ErrPayloadTooLarge) Error() string {
	return fmt.Sprintf("%s is too large: %d bytes (limit %d)", e.Path, e.Size, e.Limit)
}

// ErrProvider is a non-success response from GitHub or Telegram
type ErrProvider struct {
	Provider string
	Status   int
	Message  string
}

func (e *ErrProvider) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.Status, e.Message)
}

// Code returns the taxonomy name of err, or "InternalError"
func Code(err error) string {
	var (
		nf  *ErrNotFound
		ip  *ErrInvalidPath
		ii  *ErrInvalidInput
		ut  *ErrUnsupportedType
		mi  *ErrMissingInput
		ce  *ErrConfiguration
		ptl *ErrPayloadTooLarge
		pe  *ErrProvider
	)
	switch {
	case xerrors.As(err, &nf):
		return "NotFound"
	case xerrors.As(err, &ip):
		return "InvalidPath"
	case xerrors.As(err, &ii):
		return "InvalidInput"
	case xerrors.As(err, &ut):
		return "UnsupportedType"
	case xerrors.As(err, &mi):
		return "MissingInput"
	case xerrors.As(err, &ce):
		return "ConfigurationError"
	case xerrors.As(err, &ptl):
		return "PayloadTooLarge"
	case xerrors.As(err, &pe):
		return "ProviderError"
	default:
		return "InternalError"
	}
}
