package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/charmbracelet/huh"

	"gitflow/internal/flow"
)

// Prompter asks questions with huh forms. It satisfies flow.Prompter.
type Prompter struct {
	in         io.Reader
	out        io.Writer
	accessible bool
}

// NewPrompter reads answers from in and draws on out. When in is not a
// terminal the forms fall back to huh's line-based accessible mode.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, accessible: !isTerminal(in) || os.Getenv("ACCESSIBLE") != ""}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func (p *Prompter) run(field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithInput(p.in).
		WithOutput(p.out).
		WithAccessible(p.accessible).
		WithShowHelp(false)
	return mapAbort(form.Run())
}

// mapAbort turns huh's Ctrl+C / Esc into flow.ErrUserAbort.
func mapAbort(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return flow.ErrUserAbort
	}
	return err
}

// Select asks the user to pick one of choices. The first choice is
// highlighted initially. An empty list is an error.
func (p *Prompter) Select(prompt string, choices []string) (string, error) {
	if len(choices) == 0 {
		return "", fmt.Errorf("no choices offered for %q", prompt)
	}
	choice := choices[0]
	err := p.run(huh.NewSelect[string]().
		Title(prompt).
		Options(huh.NewOptions(choices...)...).
		Value(&choice))
	return choice, err
}

// Confirm asks a yes/no question, preselecting def.
func (p *Prompter) Confirm(prompt string, def bool) (bool, error) {
	answer := def
	err := p.run(huh.NewConfirm().
		Title(prompt).
		Affirmative("Yes").
		Negative("No").
		Value(&answer))
	return answer, err
}

// Text asks for a line of input. def is returned when the user submits
// without typing.
func (p *Prompter) Text(prompt, def string) (string, error) {
	answer := def
	err := p.run(huh.NewInput().
		Title(prompt).
		Value(&answer))
	return answer, err
}

// SafeChoices are picked, in order, by a Scripted prompter that has run out
// of answers. They never discard work.
var SafeChoices = []string{
	flow.ChoiceStash,
	flow.ChoicePullRebase,
	flow.ChoiceResolveLater,
}

// Scripted answers prompts from a queue. Once the queue is empty, Select picks
// the first of SafeChoices on offer (aborting when none is), Confirm returns
// the default and Text returns the default. It backs --yes.
type Scripted struct {
	mu      sync.Mutex
	answers []string
	asked   []string
}

// NewScripted returns a prompter answering with answers in order.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

func (s *Scripted) next(prompt string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, prompt)
	if len(s.answers) == 0 {
		return "", false
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, true
}

// Asked returns the prompts shown so far.
func (s *Scripted) Asked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.asked)
}

func (s *Scripted) Select(prompt string, choices []string) (string, error) {
	if a, ok := s.next(prompt); ok {
		if !slices.Contains(choices, a) {
			return "", fmt.Errorf("scripted answer %q is not one of %v", a, choices)
		}
		return a, nil
	}
	for _, safe := range SafeChoices {
		if slices.Contains(choices, safe) {
			return safe, nil
		}
	}
	return "", flow.ErrUserAbort
}

func (s *Scripted) Confirm(prompt string, def bool) (bool, error) {
	a, ok := s.next(prompt)
	if !ok {
		return def, nil
	}
	switch a {
	case "y", "yes", "true":
		return true, nil
	case "n", "no", "false":
		return false, nil
	}
	return false, fmt.Errorf("scripted answer %q is not yes or no", a)
}

func (s *Scripted) Text(prompt, def string) (string, error) {
	a, ok := s.next(prompt)
	if !ok {
		return def, nil
	}
	return a, nil
}

var (
	_ flow.Prompter = (*Prompter)(nil)
	_ flow.Prompter = (*Scripted)(nil)
	_ flow.Printer  = (*Printer)(nil)
)
