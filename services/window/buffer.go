package window

// DefaultCapacity is the rolling window length N used when none is configured.
const DefaultCapacity = 50

// SampleBuffer is a fixed-capacity FIFO of one channel's values, kept in a
// ring so Append never shifts memory. It is not safe for concurrent use;
// SeriesStore serialises access.
type SampleBuffer struct {
	data     []float64
	head     int // index of the oldest value
	size     int
	capacity int
}

// NewSampleBuffer creates an empty buffer. A non-positive capacity falls
// back to DefaultCapacity.
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SampleBuffer{
		data:     make([]float64, capacity),
		capacity: capacity,
	}
}

// Append adds v at the tail. When the buffer is full the oldest value is
// overwritten and evicted reports true.
func (b *SampleBuffer) Append(v float64) (evicted bool) {
	if b.size < b.capacity {
		b.data[(b.head+b.size)%b.capacity] = v
		b.size++
		return false
	}
	b.data[b.head] = v
	b.head = (b.head + 1) % b.capacity
	return true
}

// ReplaceAll discards the current contents and adopts values, keeping
// only the last Capacity() entries when values is longer.
func (b *SampleBuffer) ReplaceAll(values []float64) {
	if len(values) > b.capacity {
		values = values[len(values)-b.capacity:]
	}
	n := copy(b.data, values)
	b.head = 0
	b.size = n
}

// Values returns the contents oldest first. The slice is a copy.
func (b *SampleBuffer) Values() []float64 {
	out := make([]float64, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.data[(b.head+i)%b.capacity]
	}
	return out
}

func (b *SampleBuffer) Len() int { return b.size }

func (b *SampleBuffer) Capacity() int { return b.capacity }
