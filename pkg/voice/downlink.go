package voice

import (
	"context"
	"sync"
	"time"
)

// DownlinkQueue buffers inbound model audio between the network channel
// and the playback engine. Entries come out in strict arrival order.
// Flush discards everything pending at once; a flushed entry is gone
// for good.
type DownlinkQueue struct {
	mu      sync.Mutex
	entries []*PlaybackQueueEntry
	nextSeq int64
	closed  bool

	// notify wakes at most one blocked Pop.
	notify chan struct{}
}

// NewDownlinkQueue creates an empty queue.
func NewDownlinkQueue() *DownlinkQueue {
	return &DownlinkQueue{
		notify: make(chan struct{}, 1),
	}
}

// Enqueue appends a PCM16 chunk to the tail of the queue and returns
// the entry created for it.
func (q *DownlinkQueue) Enqueue(pcm []byte, sampleRate int) (*PlaybackQueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	entry := &PlaybackQueueEntry{
		Seq:        q.nextSeq,
		PCM:        pcm,
		SampleRate: sampleRate,
		EnqueuedAt: time.Now(),
	}
	q.nextSeq++
	q.entries = append(q.entries, entry)
	q.wake()
	return entry, nil
}

// Pop removes and returns the head of the queue, blocking until an
// entry is available, the context is cancelled, or the queue is closed.
func (q *DownlinkQueue) Pop(ctx context.Context) (*PlaybackQueueEntry, error) {
	for {
		q.mu.Lock()
		if len(q.entries) > 0 {
			entry := q.entries[0]
			q.entries = q.entries[1:]
			q.mu.Unlock()
			return entry, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Flush discards all pending entries and returns how many were dropped.
// In-flight entries already popped are unaffected.
func (q *DownlinkQueue) Flush() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	q.entries = nil
	return n
}

// Len reports the number of pending entries.
func (q *DownlinkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close marks the queue closed. Pending entries remain poppable; once
// drained, Pop returns ErrQueueClosed. Enqueue fails immediately.
func (q *DownlinkQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.wake()
}

// wake must be called with q.mu held.
func (q *DownlinkQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
