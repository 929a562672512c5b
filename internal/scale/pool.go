package scale

import (
	"context"
	"sync"
)

// Pool is a resizable counting semaphore bounding concurrent analysis
// stage executions. It satisfies the workflow manager's Pool interface.
// Shrinking never interrupts running work: slots disappear as they are
// released.
type Pool struct {
	mu    sync.Mutex
	cond  *sync.Cond
	size  int
	inUse int
}

// NewPool builds a pool with the given number of slots (minimum one).
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{size: size}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Acquire blocks until a slot is free or the context ends.
func (p *Pool) Acquire(ctx context.Context) error {
	// Wake the cond wait when the context ends; the flag stops the
	// watcher when Acquire returns first. The watcher takes the lock so
	// its broadcast cannot land between a waiter's ctx.Err check and its
	// cond.Wait call.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.inUse >= p.size {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.inUse++
	return nil
}

// Release frees a slot taken by a successful Acquire.
func (p *Pool) Release() {
	p.mu.Lock()
	if p.inUse > 0 {
		p.inUse--
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Size returns the current slot count.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// InUse returns the number of held slots.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Resize changes the slot count (minimum one) and wakes waiters when the
// pool grew.
func (p *Pool) Resize(size int) {
	if size < 1 {
		size = 1
	}
	p.mu.Lock()
	p.size = size
	p.mu.Unlock()
	p.cond.Broadcast()
}
