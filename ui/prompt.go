package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/byte3-it/iscp/auth"
)

// DefaultPort is used when the port prompt is left empty or is invalid.
const DefaultPort = 22

var ErrNoInput = errors.New("no input")

// Prompter reads answers from a terminal. Secrets are read without echo when
// the input is a TTY and as plain lines otherwise.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

var _ auth.Prompter = (*Prompter)(nil)

// NewPrompter reads from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			return "", ErrNoInput
		}
	}
	return strings.TrimSpace(line), nil
}

// Ask prompts for a value; an empty answer selects def.
func (p *Prompter) Ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	answer, err := p.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// AskRequired prompts until a non-empty answer is given.
func (p *Prompter) AskRequired(label string) (string, error) {
	for {
		answer, err := p.Ask(label, "")
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
		fmt.Fprintln(p.out, warnStyle.Render("! a value is required"))
	}
}

// AskPort prompts for a TCP port. Anything that is not a valid port falls
// back to DefaultPort with a warning.
func (p *Prompter) AskPort(label string) (int, error) {
	answer, err := p.Ask(label, strconv.Itoa(DefaultPort))
	if err != nil {
		return 0, err
	}
	port, err := strconv.ParseUint(answer, 10, 16)
	if err != nil || port == 0 {
		fmt.Fprintln(p.out, warnStyle.Render(fmt.Sprintf("! invalid port number %q, using default %d", answer, DefaultPort)))
		return DefaultPort, nil
	}
	return int(port), nil
}

// Secret prompts for a value without echoing it.
func (p *Prompter) Secret(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if p.fd < 0 {
		return p.readLine()
	}
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Passphrase implements auth.Prompter.
func (p *Prompter) Passphrase(path string) (string, error) {
	fmt.Fprintln(p.out, warnStyle.Render("SSH key "+path+" requires a passphrase"))
	return p.Secret("Passphrase")
}

// Password implements auth.Prompter.
func (p *Prompter) Password(username string) (string, error) {
	return p.Secret("Password for " + username)
}
