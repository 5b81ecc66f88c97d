// Package console drives the command surface from a line-oriented terminal
// and prints deliveries there.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"tasky/internal/command"
	"tasky/internal/delivery"
	"tasky/pkg/logx"
)

const prompt = "> "

type Console struct {
	in   io.Reader
	disp *command.Dispatcher
	log  logx.Logger

	mu  sync.Mutex
	out io.Writer
}

func New(in io.Reader, out io.Writer, disp *command.Dispatcher, log logx.Logger) *Console {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Console{in: in, out: out, disp: disp, log: log}
}

// Run reads commands until ctx ends or input is exhausted. The reader is
// not closed; a blocked read is abandoned on cancel.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	c.print(prompt)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("console read: %w", err)
			}
			c.log.Info("console input closed")
			return nil
		case line := <-lines:
			c.handle(ctx, line)
			c.print(prompt)
		}
	}
}

func (c *Console) handle(ctx context.Context, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	cmd, err := command.ParseLine(line)
	if err != nil {
		c.println(errorText(err))
		return
	}
	cmd.Caller = command.Caller{Source: "console", Owner: true}
	res, err := c.disp.Dispatch(ctx, cmd)
	if err != nil {
		c.println(errorText(err))
		return
	}
	if res.Text != "" {
		c.println(res.Text)
	}
}

func errorText(err error) string {
	if errors.Is(err, command.ErrUnknownCommand) {
		return "unknown command. try help"
	}
	return "error: " + err.Error()
}

func (c *Console) print(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, s)
}

func (c *Console) println(s string) { c.print(s + "\n") }

// Show prints a delivery. Console implements delivery.Surface.
func (c *Console) Show(_ context.Context, d delivery.Delivery) error {
	line := fmt.Sprintf("\n⏰ %s", d.Task.Title)
	if body := strings.TrimSpace(d.Task.Body); body != "" {
		line += " | " + body
	}
	c.println(line + fmt.Sprintf("  (dismiss %s)", d.ID))
	return nil
}

func (c *Console) Close(_ context.Context, d delivery.Delivery) error {
	c.println(fmt.Sprintf("[%s] %s", d.Reason, d.Task.Title))
	return nil
}
