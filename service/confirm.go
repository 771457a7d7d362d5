package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/airbusgeo/ardcube/service/log"
)

// Confirmer is asked before a long or destructive operation
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc implements Confirmer with a function
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm implements Confirmer
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// AlwaysYes confirms without asking
var AlwaysYes Confirmer = ConfirmFunc(func(ctx context.Context, prompt string) bool {
	log.Logger(ctx).Sugar().Debugf("%s: yes", prompt)
	return true
})

// AlwaysNo declines without asking
var AlwaysNo Confirmer = ConfirmFunc(func(ctx context.Context, prompt string) bool {
	log.Logger(ctx).Sugar().Debugf("%s: no", prompt)
	return false
})

// Prompt asks the question on Out and reads the answer on In, until the answer is one of y/yes/n/no.
// End of input counts as no.
// The answers of successive questions are read from the same buffered input.
type Prompt struct {
	In  io.Reader
	Out io.Writer

	mu      sync.Mutex
	scanner *bufio.Scanner
}

// NewPrompt creates a Prompt on stdin/stdout
func NewPrompt() *Prompt {
	return &Prompt{In: os.Stdin, Out: os.Stdout}
}

// Confirm implements Confirmer
func (p *Prompt) Confirm(ctx context.Context, prompt string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.In)
	}
	for {
		fmt.Fprintf(p.Out, "%s (y/n) ", prompt)
		if !p.scanner.Scan() {
			return false
		}
		switch answer := strings.ToLower(strings.TrimSpace(p.scanner.Text())); answer {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		default:
			fmt.Fprintf(p.Out, "----------\n%s is not a valid answer!\n----------\n", answer)
		}
	}
}
