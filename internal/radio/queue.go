package radio

// FrameQueue is a bounded FIFO of frames. It copies frames on the way in so
// callers may reuse their buffers. It is not safe for concurrent use; adapters
// guard it with their own lock.
type FrameQueue struct {
	data       [FrameQueueSize][]byte
	head, tail int // head = next pop, tail = next push
	count      int
}

// Push appends a copy of frame. It returns false when the queue is full.
func (q *FrameQueue) Push(frame []byte) bool {
	if q.count == FrameQueueSize {
		return false
	}
	q.push(frame)
	return true
}

// PushDropOldest appends a copy of frame, evicting the oldest frame when the
// queue is full. It reports whether a frame was dropped.
func (q *FrameQueue) PushDropOldest(frame []byte) bool {
	dropped := false
	if q.count == FrameQueueSize {
		q.data[q.head] = nil
		q.head = (q.head + 1) % FrameQueueSize
		q.count--
		dropped = true
	}
	q.push(frame)
	return dropped
}

func (q *FrameQueue) push(frame []byte) {
	q.data[q.tail] = append([]byte(nil), frame...)
	q.tail = (q.tail + 1) % FrameQueueSize
	q.count++
}

// Pop removes and returns the oldest frame.
func (q *FrameQueue) Pop() ([]byte, bool) {
	if q.count == 0 {
		return nil, false
	}
	frame := q.data[q.head]
	q.data[q.head] = nil
	q.head = (q.head + 1) % FrameQueueSize
	q.count--
	return frame, true
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int { return q.count }

// Busy reports whether the queue is at least two thirds full.
func (q *FrameQueue) Busy() bool {
	return q.count >= FrameQueueSize*2/3
}

// Reset drops every queued frame.
func (q *FrameQueue) Reset() {
	*q = FrameQueue{}
}
