package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

type answer struct {
	line string
	err  error
}

// promptConfirmer asks on the terminal before any file is changed. One
// reader serves every prompt, so input typed ahead is kept, and a read
// abandoned by a cancelled prompt is picked up by the next one.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer

	once     sync.Once
	requests chan struct{}
	answers  chan answer
	pending  bool
}

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{
		in:       bufio.NewReader(in),
		out:      out,
		requests: make(chan struct{}, 1),
		answers:  make(chan answer, 1),
	}
}

func (c *promptConfirmer) readLoop() {
	for range c.requests {
		line, err := c.in.ReadString('\n')
		c.answers <- answer{line: line, err: err}
	}
}

// Confirm reads one line; only "y" or "yes" approve. EOF declines.
func (c *promptConfirmer) Confirm(ctx context.Context, issueCount int) (bool, error) {
	c.once.Do(func() { go c.readLoop() })
	fmt.Fprintf(c.out, "\nFix %d issue(s)? Continue? [y/N] ", issueCount)

	if !c.pending {
		c.requests <- struct{}{}
		c.pending = true
	}

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return false, ctx.Err()
	case a := <-c.answers:
		c.pending = false
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return false, fmt.Errorf("reading answer: %w", a.err)
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
