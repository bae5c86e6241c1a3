// Package conlog holds the interactive console pieces shared by the
// command-line programs: lipgloss styles for consistent coloring and
// a Prompter for default-carrying operator prompts.
package conlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	WarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
)

// Prompter reads operator answers line by line, showing the current
// default and keeping it on an empty answer. Unparseable answers are
// re-asked, not errored; the operator is sitting right there.
type Prompter struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

func NewPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stdout}
}

func (p *Prompter) readLine() (string, error) {
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.In)
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *Prompter) ask(label, def string) (string, error) {
	fmt.Fprintf(p.Out, "%s [%s]: ", PromptStyle.Render(label), ValueStyle.Render(def))
	return p.readLine()
}

// Title prints a section heading.
func (p *Prompter) Title(s string) {
	fmt.Fprintln(p.Out, TitleStyle.Render(s))
}

// Warn prints a highlighted warning line.
func (p *Prompter) Warn(s string) {
	fmt.Fprintln(p.Out, WarnStyle.Render(s))
}

// Printf writes plain output through the prompter's writer.
func (p *Prompter) Printf(format string, a ...any) {
	fmt.Fprintf(p.Out, format, a...)
}

// String prompts for a free-form answer. An optional validate func
// rejects answers with a message and re-asks.
func (p *Prompter) String(label, def string, validate func(string) error) (string, error) {
	for {
		raw, err := p.ask(label, def)
		if err != nil {
			return "", err
		}
		if raw == "" {
			raw = def
		}
		if validate != nil {
			if verr := validate(raw); verr != nil {
				p.Warn(verr.Error())
				continue
			}
		}
		return raw, nil
	}
}

// Float prompts for a number.
func (p *Prompter) Float(label string, def float64) (float64, error) {
	for {
		raw, err := p.ask(label, strconv.FormatFloat(def, 'g', -1, 64))
		if err != nil {
			return 0, err
		}
		if raw == "" {
			return def, nil
		}
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			p.Warn("not a number: " + raw)
			continue
		}
		return v, nil
	}
}

// Int prompts for an integer.
func (p *Prompter) Int(label string, def int) (int, error) {
	for {
		raw, err := p.ask(label, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		if raw == "" {
			return def, nil
		}
		v, perr := strconv.Atoi(raw)
		if perr != nil {
			p.Warn("not an integer: " + raw)
			continue
		}
		return v, nil
	}
}

// YesNo prompts for a y/n answer.
func (p *Prompter) YesNo(label string, def bool) (bool, error) {
	d := "n"
	if def {
		d = "y"
	}
	for {
		raw, err := p.ask(label, d)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(raw) {
		case "":
			return def, nil
		case "y", "yes", "s", "si":
			return true, nil
		case "n", "no":
			return false, nil
		}
		p.Warn("answer y or n")
	}
}

// Enter blocks until the operator presses return.
func (p *Prompter) Enter(label string) error {
	fmt.Fprintf(p.Out, "%s", PromptStyle.Render(label))
	_, err := p.readLine()
	return err
}
