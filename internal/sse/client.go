package sse

import (
	"sync"
	"sync/atomic"
)

type Client struct {
	ID   string
	Ch   chan Event
	Done chan struct{}

	fullStreak atomic.Int32
	closeOnce  sync.Once
}

func NewClient(id string) *Client {
	return &Client{
		ID:   id,
		Ch:   make(chan Event, 512),
		Done: make(chan struct{}),
	}
}

func (c *Client) Close() {
	if c == nil {
		return
	}

	c.closeOnce.Do(func() {
		close(c.Done)
	})
}

func (c *Client) MarkDispatchSuccess() {
	if c == nil {
		return
	}
	c.fullStreak.Store(0)
}

func (c *Client) MarkDispatchFull() int32 {
	if c == nil {
		return 0
	}
	return c.fullStreak.Add(1)
}
