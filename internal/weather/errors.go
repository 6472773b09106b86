package weather

import (
	"errors"
	"fmt"
)

var (
	ErrRequestLimitReached = errors.New("request limit reached")
	ErrNoDataForDate       = errors.New("no data for the given date")
	ErrCredentialMissing   = errors.New("api key is not configured")
	ErrMalformedResponse   = errors.New("malformed response")
	ErrNoErrorInformation  = errors.New("could not get error information")
	ErrEmptyQuery          = errors.New("search query is empty")
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	KindAdmissionDenied   ErrorKind = "admission_denied"
	KindTransport         ErrorKind = "transport"
	KindMalformed         ErrorKind = "malformed_response"
	KindNoData            ErrorKind = "no_data"
	KindCredentialMissing ErrorKind = "credential_missing"
	KindInvalidRequest    ErrorKind = "invalid_request"
)

// ProviderError is the structured failure returned by a provider call.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError of the given kind.
func NewProviderError(provider string, kind ErrorKind, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a provider failure, or KindTransport for foreign errors.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransport
}
