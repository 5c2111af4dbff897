package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

// Session is the connected but unauthenticated transport the negotiator
// drives. Implementations report refusals with ErrRejected, encrypted keys
// with ErrPassphraseRequired and bad key material with ErrUnusableKey. Any
// other error is a transport failure and ends the negotiation.
type Session interface {
	AuthByKey(ctx context.Context, username, path, passphrase string) error
	AuthByPassword(ctx context.Context, username, password string) error
}

// Prompter supplies secrets on demand.
type Prompter interface {
	Passphrase(path string) (string, error)
	Password(username string) (string, error)
}

// State is the negotiator state machine position.
type State int

const (
	StateIdle State = iota
	StateTrying
	StateAuthenticated
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTrying:
		return "trying"
	case StateAuthenticated:
		return "authenticated"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is returned once a credential is accepted. The session passed to
// Negotiate is now authenticated and owned by the caller.
type Result struct {
	Session  Session
	Method   string
	Outcomes []Outcome
}

// Negotiator tries credentials in order until the remote accepts one. A
// Negotiator is single use.
type Negotiator struct {
	prompter Prompter
	logger   *log.Logger

	state State
	index int
}

// NewNegotiator returns a Negotiator in the idle state. prompter may be nil,
// in which case encrypted keys and empty passwords are Unavailable.
func NewNegotiator(prompter Prompter, logger *log.Logger) *Negotiator {
	if logger == nil {
		logger = log.Default()
	}
	return &Negotiator{prompter: prompter, logger: logger}
}

// State reports the current state and, while trying, the index of the
// credential being attempted.
func (n *Negotiator) State() (State, int) {
	return n.state, n.index
}

// Negotiate attempts each credential in order and returns on the first
// success. When every credential fails it returns *AllMethodsFailedError.
func (n *Negotiator) Negotiate(ctx context.Context, sess Session, username string, creds []Credential) (*Result, error) {
	if n.state != StateIdle {
		return nil, ErrNegotiated
	}

	queue := slices.Clone(creds)
	outcomes := make([]Outcome, 0, len(queue))

	for i := 0; i < len(queue); i++ {
		n.state, n.index = StateTrying, i
		cred := queue[i]

		outcome, retry, err := n.attempt(ctx, sess, username, cred)
		if err != nil {
			n.state = StateExhausted
			return nil, fmt.Errorf("authenticate with %s: %w", cred, err)
		}
		outcomes = append(outcomes, outcome)

		switch outcome.Status {
		case Authenticated:
			n.state = StateAuthenticated
			n.logger.Info("authenticated", "user", username, "method", outcome.Method)
			return &Result{Session: sess, Method: outcome.Method, Outcomes: outcomes}, nil
		case Rejected:
			n.logger.Warn("credential rejected", "method", outcome.Method, "reason", outcome.Reason)
		default:
			n.logger.Debug("credential unavailable", "method", outcome.Method, "reason", outcome.Reason)
		}

		if retry != nil {
			queue = slices.Insert(queue, i+1, *retry)
		}
	}

	n.state = StateExhausted
	return nil, &AllMethodsFailedError{Outcomes: outcomes}
}

// attempt tries one credential. retry is set when an encrypted key should be
// tried again with a prompted passphrase.
func (n *Negotiator) attempt(ctx context.Context, sess Session, username string, cred Credential) (Outcome, *Credential, error) {
	method := cred.String()

	var err error
	switch cred.kind {
	case KeyFile:
		if reason := checkKeyFile(cred.path); reason != "" {
			return unavailable(method, reason), nil, nil
		}
		passphrase := cred.passphrase
		if cred.askPassphrase {
			if n.prompter == nil {
				return unavailable(method, "no passphrase source"), nil, nil
			}
			passphrase, err = n.prompter.Passphrase(cred.path)
			if err != nil {
				return unavailable(method, "passphrase input: "+err.Error()), nil, nil
			}
		}
		n.logger.Info("trying key", "path", cred.path)
		err = sess.AuthByKey(ctx, username, cred.path, passphrase)

	case Password:
		password := cred.secret
		if password == "" {
			if n.prompter == nil {
				return unavailable(method, "no password source"), nil, nil
			}
			password, err = n.prompter.Password(username)
			if err != nil {
				return unavailable(method, "password input: "+err.Error()), nil, nil
			}
		}
		n.logger.Info("trying password", "user", username)
		err = sess.AuthByPassword(ctx, username, password)

	default:
		return unavailable(method, "unsupported credential"), nil, nil
	}

	switch {
	case err == nil:
		return Outcome{Method: method, Status: Authenticated}, nil, nil
	case errors.Is(err, ErrPassphraseRequired):
		var retry *Credential
		if cred.kind == KeyFile && cred.passphrase == "" && !cred.askPassphrase && n.prompter != nil {
			next := cred.withPrompt()
			retry = &next
		}
		return unavailable(method, reason(err, ErrPassphraseRequired)), retry, nil
	case errors.Is(err, ErrUnusableKey):
		return unavailable(method, reason(err, ErrUnusableKey)), nil, nil
	case errors.Is(err, ErrRejected):
		return Outcome{Method: method, Status: Rejected, Reason: reason(err, ErrRejected)}, nil, nil
	default:
		return Outcome{}, nil, err
	}
}

func unavailable(method, reason string) Outcome {
	return Outcome{Method: method, Status: Unavailable, Reason: reason}
}

// checkKeyFile returns a non-empty reason when path cannot be read.
func checkKeyFile(path string) string {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "not found"
	}
	if err != nil {
		return err.Error()
	}
	if info.IsDir() {
		return "is a directory"
	}
	f, err := os.Open(path)
	if err != nil {
		return "not readable"
	}
	f.Close()
	return ""
}

// reason strips the sentinel text so outcomes read "rejected (detail)"
// rather than repeating the status.
func reason(err, sentinel error) string {
	msg := err.Error()
	if msg == sentinel.Error() {
		return sentinel.Error()
	}
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return msg
}
