package armsim

// requestQueue is the engine's FIFO. It is not safe for concurrent use; the
// engine guards it with its state lock.
type requestQueue struct {
	items    []*request
	maxDepth int
}

func (q *requestQueue) enqueue(r *request) error {
	if q.maxDepth > 0 && len(q.items) >= q.maxDepth {
		return ErrQueueFull
	}
	q.items = append(q.items, r)
	return nil
}

func (q *requestQueue) next() (*request, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	r := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return r, true
}

// drain removes and returns everything still queued, oldest first.
func (q *requestQueue) drain() []*request {
	out := q.items
	q.items = nil
	return out
}

func (q *requestQueue) len() int { return len(q.items) }
