// Package console runs a session against the terminal: stdin lines become
// text turns and model replies are streamed to stdout.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/room4-2/livedesk/messages"
	"github.com/room4-2/livedesk/relay"
)

const prompt = "> "

// Transport adapts a line-oriented terminal to relay.Transport
type Transport struct {
	lines chan string
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	out     io.Writer
	inReply bool
}

// NewTransport starts reading lines from in. The reader goroutine ends when
// in is exhausted or the transport is closed and a line arrives.
func NewTransport(in io.Reader, out io.Writer) *Transport {
	t := &Transport{
		lines: make(chan string),
		done:  make(chan struct{}),
		out:   out,
	}
	go t.readLines(in)
	t.print(prompt)
	return t
}

func (t *Transport) readLines(in io.Reader) {
	defer close(t.lines)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case t.lines <- scanner.Text():
		case <-t.done:
			return
		}
	}
}

// ReadFrame returns the next non-empty line as a text frame. "exit" or
// "quit" ends the conversation.
func (t *Transport) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		select {
		case line, ok := <-t.lines:
			if !ok {
				return nil, io.EOF
			}
			line = strings.TrimSpace(line)
			switch strings.ToLower(line) {
			case "":
				t.print(prompt)
				continue
			case "exit", "quit":
				return nil, relay.ErrClosed
			}
			return messages.TextFrame(line)
		case <-t.done:
			return nil, relay.ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// WriteFrame renders a frame. Audio is not playable on a terminal and is dropped.
func (t *Transport) WriteFrame(_ context.Context, frame *messages.ServerFrame) error {
	select {
	case <-t.done:
		return relay.ErrClosed
	default:
	}
	t.render(frame)
	return nil
}

// Notify renders a frame without blocking on the relay
func (t *Transport) Notify(frame *messages.ServerFrame) bool {
	return t.WriteFrame(context.Background(), frame) == nil
}

func (t *Transport) Close() error {
	t.once.Do(func() {
		close(t.done)
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.inReply {
			fmt.Fprintln(t.out)
		}
		t.inReply = false
	})
	return nil
}

func (t *Transport) render(frame *messages.ServerFrame) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case frame.TurnComplete:
		if t.inReply {
			fmt.Fprintln(t.out)
		}
		t.inReply = false
		fmt.Fprint(t.out, prompt)

	case frame.MIMEType == messages.MIMEText && frame.Role == messages.RoleSystem:
		if t.inReply {
			fmt.Fprintln(t.out)
			t.inReply = false
		}
		fmt.Fprintf(t.out, "[%s]\n", frame.Data)

	case frame.MIMEType == messages.MIMEText:
		if !t.inReply {
			fmt.Fprint(t.out, "Agent: ")
			t.inReply = true
		}
		fmt.Fprint(t.out, frame.Data)
	}
}

func (t *Transport) print(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, s)
}
