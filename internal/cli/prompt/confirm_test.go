package prompt

import (
	"errors"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
)

func TestConfirmWithForceSkipsPrompt(t *testing.T) {
	// A zero Confirmer would read the terminal; force must not touch it.
	ok, err := Confirmer{}.ConfirmWithForce("Delete chunk?", true)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(ErrAborted))
	assert.True(t, IsAborted(promptui.ErrInterrupt))
	assert.False(t, IsAborted(errors.New("other")))
	assert.False(t, IsAborted(nil))
}
