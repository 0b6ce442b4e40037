package wizard

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/tessro/weradio/internal/core"
	werrors "github.com/tessro/weradio/internal/errors"
)

// Interactive provides interactive fallback functionality.
type Interactive struct {
	enabled bool
}

// NewInteractive creates a new interactive handler.
func NewInteractive() *Interactive {
	return &Interactive{
		enabled: true,
	}
}

// SetEnabled enables or disables interactive mode.
func (i *Interactive) SetEnabled(enabled bool) {
	i.enabled = enabled
}

// IsTerminal returns true if stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// CanInteract returns true if interactive mode is available.
func (i *Interactive) CanInteract() bool {
	return i.enabled && IsTerminal()
}

// PromptTrack launches the track picker if interactive mode is available.
// Returns nil if cancelled or not interactive.
func (i *Interactive) PromptTrack(listing *core.Listing, scope Scope) (*Pick, error) {
	if !i.CanInteract() || listing.IsEmpty() {
		return nil, nil
	}
	return RunSearch(listing, scope)
}

// Confirm asks a yes/no question. Without a terminal the answer is no.
func (i *Interactive) Confirm(ctx context.Context, prompt string) (bool, error) {
	if !i.CanInteract() {
		return false, nil
	}

	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// PromptLogin asks for a username and password.
func (i *Interactive) PromptLogin(ctx context.Context, username string) (string, string, error) {
	if !i.CanInteract() {
		return "", "", werrors.WithSuggestion(werrors.ErrNotAuthenticated,
			"Pass --username and --password, or run 'weradio auth login' in a terminal")
	}

	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&username).
				Validate(required("username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(required("password")),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return "", "", err
	}
	return username, password, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

// NeedsTrack returns true if a track argument is required but missing.
func NeedsTrack(args []string) bool {
	return len(args) == 0
}
