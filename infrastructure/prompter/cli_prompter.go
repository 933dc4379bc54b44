// Package prompter asks the operator to confirm grants on a terminal.
package prompter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/reglet-dev/sourcehost/domain/entities"
)

// ErrNotInteractive is returned when a confirmation is needed but nobody can
// answer it.
var ErrNotInteractive = errors.New("grants need confirmation in non-interactive mode; pass --yes")

// CliPrompter asks yes/no questions on a line-oriented terminal.
type CliPrompter struct {
	in  *bufio.Scanner
	src io.Reader
	out io.Writer
}

// NewCliPrompter creates a new CliPrompter.
func NewCliPrompter(in io.Reader, out io.Writer) *CliPrompter {
	return &CliPrompter{in: bufio.NewScanner(in), src: in, out: out}
}

// IsInteractive reports whether answers can be read. A file must be a
// terminal; any other reader is taken as scripted answers.
func (p *CliPrompter) IsInteractive() bool {
	f, ok := p.src.(*os.File)
	if !ok {
		return true
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// Confirm prints question and reads one answer. Anything but y or yes
// denies.
func (p *CliPrompter) Confirm(question string) (bool, error) {
	if !p.IsInteractive() {
		return false, ErrNotInteractive
	}
	_, _ = fmt.Fprintf(p.out, "%s [y/n]: ", question)

	if p.in.Scan() {
		switch strings.ToLower(strings.TrimSpace(p.in.Text())) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
	if err := p.in.Err(); err != nil {
		return false, err
	}
	return false, io.EOF
}

// ConfirmGrants lists the rules of grants and asks once for all of them.
func (p *CliPrompter) ConfirmGrants(grants *entities.GrantSet) (bool, error) {
	if grants.IsEmpty() {
		return true, nil
	}
	_, _ = fmt.Fprintln(p.out, "The following grants will be added:")
	for _, line := range Describe(grants) {
		_, _ = fmt.Fprintf(p.out, "- %s\n", line)
	}
	return p.Confirm("Grant all?")
}

// Describe renders each rule of grants as one line.
func Describe(grants *entities.GrantSet) []string {
	var lines []string
	if grants == nil {
		return nil
	}
	if grants.Network != nil {
		for _, r := range grants.Network.Rules {
			lines = append(lines, fmt.Sprintf("network: %s on ports %s",
				strings.Join(r.Hosts, ", "), strings.Join(r.Ports, ", ")))
		}
	}
	if grants.Settings != nil {
		for _, r := range grants.Settings.Rules {
			lines = append(lines, fmt.Sprintf("settings (%s): %s", r.Operation, strings.Join(r.Keys, ", ")))
		}
	}
	return lines
}
