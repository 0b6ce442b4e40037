package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Prompts routes library confirmations and login hints into the running
// program. Until a program is attached, confirmations are declined.
type Prompts struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// NewPrompts creates an unattached Prompts.
func NewPrompts() *Prompts {
	return &Prompts{}
}

// Attach points Prompts at a running program.
func (p *Prompts) Attach(prog *tea.Program) {
	p.mu.Lock()
	p.send = prog.Send
	p.mu.Unlock()
}

func (p *Prompts) sender() func(tea.Msg) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.send
}

// Confirm opens the confirm overlay and blocks until it is answered.
func (p *Prompts) Confirm(ctx context.Context, prompt string) (bool, error) {
	send := p.sender()
	if send == nil {
		return false, nil
	}
	reply := make(chan bool, 1)
	send(confirmMsg{prompt: prompt, reply: reply})
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// PromptLogin shows a login hint instead of calling the server.
func (p *Prompts) PromptLogin(action string) {
	if send := p.sender(); send != nil {
		send(loginHintMsg{action: action})
	}
}
