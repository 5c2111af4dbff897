package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the result of attempting one credential.
type Status int

const (
	Authenticated Status = iota + 1
	// Rejected means the remote refused the credential.
	Rejected
	// Unavailable means the credential could not be tried at all.
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome records what happened to one attempted credential. Method holds
// the redacted credential description.
type Outcome struct {
	Method string
	Status Status
	Reason string
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return fmt.Sprintf("%s: %s", o.Method, o.Status)
	}
	return fmt.Sprintf("%s: %s (%s)", o.Method, o.Status, o.Reason)
}

var (
	// ErrAllMethodsFailed is matched by *AllMethodsFailedError.
	ErrAllMethodsFailed = errors.New("all authentication methods failed")

	// ErrPassphraseRequired is returned by a Session when a key is encrypted
	// and no passphrase was given.
	ErrPassphraseRequired = errors.New("private key is passphrase protected")

	// ErrUnusableKey is returned by a Session when a key cannot be loaded or
	// decrypted. The credential is recorded as Unavailable.
	ErrUnusableKey = errors.New("private key unusable")

	// ErrRejected is returned by a Session when the remote refuses a credential.
	ErrRejected = errors.New("rejected by remote")

	// ErrNegotiated is returned when a Negotiator is reused.
	ErrNegotiated = errors.New("negotiator already used")
)

// AllMethodsFailedError carries the outcome of every attempted credential in
// attempt order.
type AllMethodsFailedError struct {
	Outcomes []Outcome
}

func (e *AllMethodsFailedError) Error() string {
	if len(e.Outcomes) == 0 {
		return ErrAllMethodsFailed.Error() + ": no credentials available"
	}
	parts := make([]string, len(e.Outcomes))
	for i, o := range e.Outcomes {
		parts[i] = o.String()
	}
	return ErrAllMethodsFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *AllMethodsFailedError) Is(target error) bool {
	return target == ErrAllMethodsFailed
}
