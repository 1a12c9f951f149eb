package pokedex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// Notifier surfaces a recognized Pokémon name to the user.
type Notifier interface {
	Notify(ctx context.Context, name string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, name string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, name string) error {
	return f(ctx, name)
}

// MultiNotifier notifies every member in order. All members are called even
// if some fail.
type MultiNotifier []Notifier

// Notify implements Notifier.
func (m MultiNotifier) Notify(ctx context.Context, name string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConsoleNotifier prints each name inside a box.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleNotifier creates a notifier writing to w.
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w}
}

// Notify implements Notifier.
func (c *ConsoleNotifier) Notify(ctx context.Context, name string) error {
	width := utf8.RuneCountInString(name) + 2
	line := strings.Repeat("─", width)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "\n┌%s┐\n│ %s │\n└%s┘\n\n", line, name, line)
	return err
}
