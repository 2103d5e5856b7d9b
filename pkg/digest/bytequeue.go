package digest

// ByteQueue is a growable circular byte buffer. Update feeds arbitrary-length
// input into it and the hasher drains full compression blocks as they
// accumulate, so at most one block of backlog is ever held per stream.
type ByteQueue struct {
	buf   []byte
	head  int
	count int
}

const minQueueCapacity = 128

func (q *ByteQueue) Len() int {
	return q.count
}

// Enqueue appends p, growing the ring when needed.
func (q *ByteQueue) Enqueue(p []byte) {
	if len(p) == 0 {
		return
	}
	q.grow(q.count + len(p))

	tail := (q.head + q.count) % len(q.buf)
	n := copy(q.buf[tail:], p)
	if n < len(p) {
		copy(q.buf, p[n:])
	}
	q.count += len(p)
}

// Dequeue fills dst with the oldest bytes and consumes them. Asking for more
// bytes than are queued is a programmer error.
func (q *ByteQueue) Dequeue(dst []byte) {
	q.Peek(dst)
	q.head = (q.head + len(dst)) % len(q.buf)
	q.count -= len(dst)
}

// Peek fills dst with the oldest bytes without consuming them, which lets the
// hasher finalize a digest from a copy of the pending tail and keep streaming.
func (q *ByteQueue) Peek(dst []byte) {
	if len(dst) > q.count {
		panic("digest: reading past end of byte queue")
	}
	if len(dst) == 0 {
		return
	}
	n := copy(dst, q.buf[q.head:])
	if n < len(dst) {
		copy(dst[n:], q.buf)
	}
}

func (q *ByteQueue) reset() {
	q.head = 0
	q.count = 0
}

func (q *ByteQueue) grow(need int) {
	if need <= len(q.buf) {
		return
	}
	capacity := len(q.buf)
	if capacity < minQueueCapacity {
		capacity = minQueueCapacity
	}
	for capacity < need {
		capacity *= 2
	}
	next := make([]byte, capacity)
	if q.count > 0 {
		n := copy(next, q.buf[q.head:min(q.head+q.count, len(q.buf))])
		if n < q.count {
			copy(next[n:], q.buf[:q.count-n])
		}
	}
	q.buf = next
	q.head = 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
