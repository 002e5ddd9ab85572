package ws

import "sync"

const defaultSendQueue = 256

// Client is one live websocket connection of a user. The send queue is never
// closed; the writer stops on done instead, so concurrent broadcasts cannot panic.
type Client struct {
	Info ConnInfo

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(info ConnInfo, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = defaultSendQueue
	}
	return &Client{
		Info: info,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

func (c *Client) UserID() string {
	return c.Info.UserID
}

// Done is closed once the connection is shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close is idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue never blocks: a full or closed client drops the payload.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}
