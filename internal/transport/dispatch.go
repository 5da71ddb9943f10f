package transport

import (
	"context"
	"sync"
)

type queued struct {
	ctx context.Context
	m   Message
}

// Dispatcher runs a Handler with one worker per conversation. Messages of
// a conversation are handled one at a time in arrival order, while
// different conversations run concurrently. Messages matched by the bypass
// predicate skip the queue and run immediately.
type Dispatcher struct {
	handle Handler
	bypass func(Message) bool

	mu     sync.Mutex
	queues map[string][]queued
	wg     sync.WaitGroup
}

// NewDispatcher wraps h. bypass may be nil.
func NewDispatcher(h Handler, bypass func(Message) bool) *Dispatcher {
	return &Dispatcher{handle: h, bypass: bypass, queues: make(map[string][]queued)}
}

// Dispatch queues m behind the conversation's pending messages. It never
// blocks on the handler.
func (d *Dispatcher) Dispatch(ctx context.Context, m Message) {
	if d.bypass != nil && d.bypass(m) {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handle(ctx, m)
		}()
		return
	}

	d.mu.Lock()
	q, active := d.queues[m.ConversationID]
	d.queues[m.ConversationID] = append(q, queued{ctx: ctx, m: m})
	if !active {
		d.wg.Add(1)
	}
	d.mu.Unlock()

	if !active {
		go d.drain(m.ConversationID)
	}
}

// drain handles the conversation's queue until it is empty. The map entry
// exists exactly while a worker is running.
func (d *Dispatcher) drain(id string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[id]
		if len(q) == 0 {
			delete(d.queues, id)
			d.mu.Unlock()
			return
		}
		next := q[0]
		q[0] = queued{}
		d.queues[id] = q[1:]
		d.mu.Unlock()

		d.handle(next.ctx, next.m)
	}
}

// Pending returns the number of queued messages not yet handed to the
// handler for a conversation.
func (d *Dispatcher) Pending(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues[id])
}

// Wait blocks until every dispatched message has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
