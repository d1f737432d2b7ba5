// Package cliutil holds small interactive-terminal helpers shared by
// iscchubctl's commands, grounded on the teacher's internal/cli/prompt and
// internal/cli/output packages but trimmed to the two things iscchubctl
// needs: a yes/no confirm and a plain table printer. iscchubctl has no
// credential store or login flow to support, since the HUB's read API is
// unauthenticated.
package cliutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned by Confirm when the user interrupts the prompt.
var ErrAborted = errors.New("cliutil: confirmation aborted")

// Confirm prompts for yes/no confirmation, defaulting to defaultYes when
// the user presses enter without typing anything.
func Confirm(label string, defaultYes bool) (bool, error) {
	defaultStr := "y/N"
	if defaultYes {
		defaultStr = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, defaultStr),
		IsConfirm: true,
	}

	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if result == "" {
			return defaultYes, nil
		}
		return false, err
	}

	return strings.EqualFold(result, "y") || strings.EqualFold(result, "yes"), nil
}

// ConfirmWithForce returns true immediately when force is set, otherwise
// prompts the user.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}
