package mqtt

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that stores messages while disconnected.
// When full the oldest message is overwritten.
// Not safe for concurrent use; caller must synchronize.
type ringBuffer struct {
	buf   []bufferedMsg
	head  int // next write position
	count int
	lost  int // messages overwritten since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

// push appends msg. It reports true the first time a message is overwritten
// after a drain, so the caller can log the overflow once.
func (r *ringBuffer) push(msg bufferedMsg) bool {
	r.buf[r.head] = msg
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
		return false
	}
	r.lost++
	return r.lost == 1
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	out := make([]bufferedMsg, 0, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	r.head, r.count, r.lost = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}

// dropped returns how many messages were overwritten since the last drain.
func (r *ringBuffer) dropped() int {
	return r.lost
}
