package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errQuit = errors.New("quit")

// Run relays lines read from in to the room and prints rendered events to
// out. It returns when the connection ends, ctx is cancelled or the user
// types /quit. Reaching the end of in leaves the event feed running.
func Run(ctx context.Context, c *Client, in io.Reader, out io.Writer) error {
	input := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				input <- errQuit
				return
			}
			if err := c.Say(line); err != nil {
				input <- err
				return
			}
		}
		input <- scanner.Err()
	}()

	events := c.Events()
	for {
		select {
		case <-ctx.Done():
			_ = c.Close()
			return nil
		case err := <-input:
			input = nil
			if err == nil {
				continue
			}
			_ = c.Close()
			if errors.Is(err, errQuit) || errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintln(out, Render(ev)); err != nil {
				return err
			}
		}
	}
}
