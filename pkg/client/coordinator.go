package client

import (
	"sync"
)

// refreshResult is what a settled refresh hands to each parked request
type refreshResult struct {
	token string
	err   error
	// position is the waiter's index in the queue, for logging
	position int
}

// flight is one outstanding refresh and the requests parked behind it.
// Waiters only exist inside a flight, so an idle coordinator cannot hold any.
type flight struct {
	waiters []chan refreshResult
}

// coordinator is a two-state machine: Idle (current == nil) and
// Refreshing(waiters) (current != nil).
type coordinator struct {
	mu        sync.Mutex
	current   *flight
	refreshes uint64
}

// acquireOrQueue makes the caller the refresh leader when idle. Otherwise it
// appends a waiter to the in-flight refresh and returns its channel.
func (c *coordinator) acquireOrQueue() (leader bool, wait <-chan refreshResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		c.current = &flight{}
		c.refreshes++
		return true, nil
	}

	// buffered so settle never blocks on a waiter that gave up
	ch := make(chan refreshResult, 1)
	c.current.waiters = append(c.current.waiters, ch)
	return false, ch
}

// settle returns the coordinator to Idle and resolves every waiter in
// insertion order. It reports how many waiters were released.
func (c *coordinator) settle(res refreshResult) int {
	c.mu.Lock()
	f := c.current
	c.current = nil
	c.mu.Unlock()

	if f == nil {
		return 0
	}
	for i, ch := range f.waiters {
		r := res
		r.position = i
		ch <- r
	}
	return len(f.waiters)
}

func (c *coordinator) refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *coordinator) queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return len(c.current.waiters)
}

func (c *coordinator) refreshCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}
