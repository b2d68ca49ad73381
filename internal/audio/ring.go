package audio

import "sync"

// RingBuffer is a fixed-capacity sample store split into equally sized segments.
//
// One segment is always reserved as the write target handed out by Rotate and is
// invisible to readers until Commit publishes it as the newest segment. Commit
// recycles the oldest committed segment as the next write target, so the buffer
// behaves like a queue of segments: pop the oldest, push the freshly filled one.
type RingBuffer struct {
	period   int
	channels int
	data     []int16

	mu     sync.RWMutex
	order  []int // committed segment indices, oldest first
	target int   // segment currently handed to the writer
}

// NewRingBuffer allocates segments*period frames of readable history plus one
// write segment. All samples start at zero.
func NewRingBuffer(segments, period, channels int) *RingBuffer {
	if segments < 1 {
		segments = 1
	}
	if period < 1 {
		period = 1
	}
	if channels < 1 {
		channels = 1
	}
	r := &RingBuffer{
		period:   period,
		channels: channels,
		data:     make([]int16, (segments+1)*period*channels),
		order:    make([]int, segments),
	}
	for i := range r.order {
		r.order[i] = i
	}
	r.target = segments
	return r
}

// Segments returns the number of readable segments.
func (r *RingBuffer) Segments() int { return len(r.order) }

// Period returns the number of frames per segment.
func (r *RingBuffer) Period() int { return r.period }

// Channels returns the number of interleaved samples per frame.
func (r *RingBuffer) Channels() int { return r.channels }

// Frames returns the readable capacity in frames.
func (r *RingBuffer) Frames() int { return len(r.order) * r.period }

// Rotate returns the segment the writer should fill next. Readers never observe
// it until Commit is called.
func (r *RingBuffer) Rotate() []int16 {
	r.mu.RLock()
	target := r.target
	r.mu.RUnlock()
	return r.segment(target)
}

// Commit publishes the current write target as the newest segment and recycles
// the oldest segment as the next write target.
func (r *RingBuffer) Commit() {
	r.mu.Lock()
	oldest := r.order[0]
	copy(r.order, r.order[1:])
	r.order[len(r.order)-1] = r.target
	r.target = oldest
	r.mu.Unlock()
}

// Reset zeroes every sample and restores the initial segment order.
func (r *RingBuffer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.data {
		r.data[i] = 0
	}
	for i := range r.order {
		r.order[i] = i
	}
	r.target = len(r.order)
}

// Read returns one sample of the frame located index frames before the newest
// committed frame. Offsets outside the retained history read as silence.
func (r *RingBuffer) Read(index, channel int) int16 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.read(index, channel)
}

// Collect copies frames into out while holding the read lock once. For every
// output frame j of n, the source frame is (n-1-j)*stride frames behind the
// newest committed frame, so out ends with the most recent audio.
func (r *RingBuffer) Collect(out []int16, stride int) {
	if stride < 1 {
		stride = 1
	}
	frames := len(out) / 2
	r.mu.RLock()
	defer r.mu.RUnlock()
	for j := 0; j < frames; j++ {
		back := (frames - 1 - j) * stride
		left := r.read(back, 0)
		right := left
		if r.channels > 1 {
			right = r.read(back, 1)
		}
		out[j*2] = left
		out[j*2+1] = right
	}
	for i := frames * 2; i < len(out); i++ {
		out[i] = 0
	}
}

func (r *RingBuffer) read(index, channel int) int16 {
	if index < 0 || index >= r.Frames() || channel < 0 || channel >= r.channels {
		return 0
	}
	// position counted forward from the oldest committed frame
	pos := r.Frames() - 1 - index
	seg := pos / r.period
	offset := pos - seg*r.period
	base := r.order[seg] * r.period * r.channels
	return r.data[base+offset*r.channels+channel]
}

func (r *RingBuffer) segment(idx int) []int16 {
	size := r.period * r.channels
	return r.data[idx*size : (idx+1)*size]
}
