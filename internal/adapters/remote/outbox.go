package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrClosed is returned for sends after the connection went away.
	ErrClosed = errors.New("remote connection closed")
	// ErrBackpressure is returned when the client is not draining commands.
	ErrBackpressure = errors.New("remote outbox full")
)

// Outbox queues encoded commands for a single writer goroutine. Send never
// blocks, so renderer calls made under component locks cannot stall on a slow
// socket.
type Outbox struct {
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewOutbox creates an outbox buffering up to size commands.
func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = 256
	}
	return &Outbox{ch: make(chan []byte, size), done: make(chan struct{})}
}

// Send encodes cmd and queues it.
func (o *Outbox) Send(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Op, err)
	}
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	select {
	case o.ch <- data:
		return nil
	case <-o.done:
		return ErrClosed
	default:
		return ErrBackpressure
	}
}

// Run writes queued commands until Close is called or write fails.
func (o *Outbox) Run(write func([]byte) error) error {
	for {
		select {
		case <-o.done:
			return nil
		case data := <-o.ch:
			if err := write(data); err != nil {
				o.Close()
				return err
			}
		}
	}
}

// Close stops Run and rejects further sends. It is safe to call repeatedly.
func (o *Outbox) Close() {
	o.closeOnce.Do(func() { close(o.done) })
}

// Done is closed once the outbox is closed.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}
