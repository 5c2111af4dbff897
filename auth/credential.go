// Package auth negotiates SSH authentication by trying an ordered list of
// credentials against a connected session until one is accepted.
package auth

import "fmt"

// Kind tags the variant held by a Credential.
type Kind int

const (
	KeyFile Kind = iota + 1
	Password
)

func (k Kind) String() string {
	switch k {
	case KeyFile:
		return "key"
	case Password:
		return "password"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Credential is a single authentication method tried at most once per
// session. Build one with KeyFileCredential, KeyFileWithPassphrase or
// PasswordCredential.
type Credential struct {
	kind       Kind
	path       string
	passphrase string
	secret     string

	// askPassphrase marks the entry derived from an encrypted key whose
	// passphrase is collected from the Prompter when the entry is tried.
	askPassphrase bool
}

// KeyFileCredential returns a private key credential with no passphrase.
func KeyFileCredential(path string) Credential {
	return Credential{kind: KeyFile, path: path}
}

// KeyFileWithPassphrase returns a private key credential decrypted with passphrase.
func KeyFileWithPassphrase(path, passphrase string) Credential {
	return Credential{kind: KeyFile, path: path, passphrase: passphrase}
}

// PasswordCredential returns a password credential. An empty password is
// requested from the Prompter when the credential is reached.
func PasswordCredential(password string) Credential {
	return Credential{kind: Password, secret: password}
}

func (c Credential) Kind() Kind { return c.kind }

// Path is the key file path, empty for passwords.
func (c Credential) Path() string { return c.path }

// String is the redacted form used in logs and errors. Secrets never appear.
func (c Credential) String() string {
	switch c.kind {
	case KeyFile:
		if c.passphrase != "" || c.askPassphrase {
			return fmt.Sprintf("key %s (with passphrase)", c.path)
		}
		return fmt.Sprintf("key %s", c.path)
	case Password:
		return "password"
	default:
		return c.kind.String()
	}
}

// GoString keeps %#v from printing secret fields.
func (c Credential) GoString() string {
	return fmt.Sprintf("auth.Credential{%s}", c.String())
}

func (c Credential) withPrompt() Credential {
	return Credential{kind: KeyFile, path: c.path, askPassphrase: true}
}
