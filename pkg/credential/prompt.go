package credential

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the user for a credential.
type Prompter interface {
	PromptForCredential(ctx context.Context) (string, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context) (string, error)

// PromptForCredential calls f.
func (f PrompterFunc) PromptForCredential(ctx context.Context) (string, error) {
	return f(ctx)
}

// TerminalPrompter reads the key from a terminal without echo.
// When In is not a terminal it reads plain lines.
type TerminalPrompter struct {
	In     *os.File
	Out    io.Writer
	Prompt string
}

// NewTerminalPrompter prompts on stdin/stderr.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{
		In:     os.Stdin,
		Out:    os.Stderr,
		Prompt: "Enter your Gemini API key: ",
	}
}

// PromptForCredential asks until a non-empty key is entered.
// Cancelling ctx abandons a pending read and restores the terminal.
func (p *TerminalPrompter) PromptForCredential(ctx context.Context) (string, error) {
	fd := int(p.In.Fd())
	isTTY := term.IsTerminal(fd)
	reader := bufio.NewReader(p.In)

	var state *term.State
	if isTTY {
		if s, err := term.GetState(fd); err == nil {
			state = s
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		fmt.Fprint(p.Out, p.Prompt)

		lines := make(chan readResult, 1)
		go func() {
			if isTTY {
				raw, err := term.ReadPassword(fd)
				lines <- readResult{line: string(raw), err: err}
				return
			}
			s, err := reader.ReadString('\n')
			if errors.Is(err, io.EOF) && s != "" {
				err = nil
			}
			lines <- readResult{line: s, err: err}
		}()

		var res readResult
		select {
		case <-ctx.Done():
			if state != nil {
				term.Restore(fd, state)
			}
			fmt.Fprintln(p.Out)
			return "", ctx.Err()
		case res = <-lines:
		}

		if isTTY {
			fmt.Fprintln(p.Out)
		}
		if res.err != nil {
			return "", fmt.Errorf("credential: read key: %w", res.err)
		}
		if key := strings.TrimSpace(res.line); key != "" {
			return key, nil
		}
	}
}

type readResult struct {
	line string
	err  error
}
