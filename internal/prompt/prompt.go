// Package prompt reads answers from the user: plain lines with defaults,
// yes/no questions, hidden secrets, and the confirmation gate in front of
// destructive channel commands.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/term"

	"github.com/fakeyudi/tgdeck/internal/credentials"
)

// Prompter asks questions on out and reads answers from in.
type Prompter struct {
	in  io.Reader
	r   *bufio.Reader
	out io.Writer
}

// New returns a Prompter. When in is a terminal, Secret hides what is typed.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, r: bufio.NewReader(in), out: out}
}

// Interactive reports whether in is a terminal.
func Interactive(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// Ask prints label and returns the trimmed answer, or def when it is empty.
func (p *Prompter) Ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// AskBool asks a y/n question.
func (p *Prompter) AskBool(label string, def bool) (bool, error) {
	d := "n"
	if def {
		d = "y"
	}
	ans, err := p.Ask(label+" (y/n)", d)
	if err != nil {
		return false, err
	}
	ans = strings.ToLower(ans)
	return ans == "y" || ans == "yes", nil
}

// Secret reads a value without echo when in is a terminal.
func (p *Prompter) Secret(label string) (string, error) {
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(f.Fd()) {
		return p.Ask(label, "")
	}
	fmt.Fprintf(p.out, "%s: ", label)
	b, err := term.ReadPassword(f.Fd())
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Confirm asks prompt as a y/n question defaulting to no. Read errors count
// as a refusal. It satisfies registry.Confirmer.
func (p *Prompter) Confirm(prompt string) bool {
	ok, err := p.AskBool(prompt, false)
	return err == nil && ok
}

// Always is a Confirmer that never asks, for --yes.
type Always struct{}

func (Always) Confirm(string) bool { return true }

// RunSetup asks for the upstream Telegram credentials. Current values are
// offered as defaults, except the API hash, which is never echoed back.
// Answers are validated before they are returned.
func RunSetup(p *Prompter, existing *credentials.Credentials) (credentials.Credentials, error) {
	var apiID, phone string
	if existing != nil {
		if existing.APIID != 0 {
			apiID = strconv.FormatInt(existing.APIID, 10)
		}
		phone = existing.Phone
	}

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(p.out, "  │   tgdeck: Telegram credentials  │")
	fmt.Fprintln(p.out, "  └─────────────────────────────────┘")
	fmt.Fprintln(p.out, "  Get these from https://my.telegram.org under API development tools.")
	fmt.Fprintln(p.out)

	var err error
	apiID, err = p.Ask("  API ID", apiID)
	if err != nil {
		return credentials.Credentials{}, err
	}
	hash, err := p.Secret("  API hash")
	if err != nil {
		return credentials.Credentials{}, err
	}
	if hash == "" && existing != nil {
		hash = existing.APIHash
	}
	phone, err = p.Ask("  Phone number (with country code)", phone)
	if err != nil {
		return credentials.Credentials{}, err
	}
	fmt.Fprintln(p.out)

	return credentials.Validate(apiID, hash, phone)
}
