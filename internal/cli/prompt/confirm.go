// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// Confirmer asks yes/no questions. The zero value uses the terminal.
type Confirmer struct {
	// In and Out override the terminal, for tests.
	In  io.ReadCloser
	Out io.WriteCloser
}

// Confirm asks label and reports whether the answer was yes. Anything other
// than y or yes is a no.
func (c Confirmer) Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     c.In,
		Stdout:    c.Out,
	}

	result, err := p.Run()
	switch {
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
		return false, ErrAborted
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case err != nil:
		return false, err
	}

	answer := strings.ToLower(strings.TrimSpace(result))
	return answer == "y" || answer == "yes", nil
}

// ConfirmWithForce returns true without asking when force is set.
func (c Confirmer) ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return c.Confirm(label)
}

// IsAborted reports whether err means the user gave up on a prompt.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, promptui.ErrInterrupt)
}
