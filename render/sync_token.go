package render

import "sync"

// SyncToken is the shared handshake the worker coordinator hands the
// Renderer loop alongside a RenderUpdate event: the renderer publishes
// the frame number that has finished consuming the prior cycle's GPU
// resources, and the worker waits on it before reusing the other
// double-buffer slot (spec.md §4.E "token is a shared
// (Mutex<Option<u64>>, Condvar)").
type SyncToken struct {
	mu        sync.Mutex
	cond      *sync.Cond
	frame     uint64
	published bool
}

func NewSyncToken() *SyncToken {
	t := &SyncToken{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Publish records the frame number that has consumed the resources
// this token accompanies and wakes any waiter.
func (t *SyncToken) Publish(frame uint64) {
	t.mu.Lock()
	t.frame = frame
	t.published = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

// Wait blocks until Publish has been called, then returns the
// published frame number.
func (t *SyncToken) Wait() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.published {
		t.cond.Wait()
	}
	return t.frame
}
