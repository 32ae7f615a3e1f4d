package window

import (
	"sync"
	"sync/atomic"

	"accel-dashboard/models"
)

// SeriesStore holds one SampleBuffer per channel. Every mutation touches
// all channels under a single lock so readers never observe a partially
// applied update, and all buffers always have the same length.
type SeriesStore struct {
	mu       sync.RWMutex
	capacity int
	buffers  map[models.Channel]*SampleBuffer

	ingested  uint64 // samples appended by IngestOne
	snapshots uint64 // IngestSnapshot calls
}

// NewSeriesStore creates empty buffers for every channel in models.Channels.
func NewSeriesStore(capacity int) *SeriesStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &SeriesStore{
		capacity: capacity,
		buffers:  make(map[models.Channel]*SampleBuffer, len(models.Channels)),
	}
	for _, ch := range models.Channels {
		s.buffers[ch] = NewSampleBuffer(capacity)
	}
	return s
}

// IngestOne appends one value to every channel (0 for absent ones) and
// returns the state right after the update.
func (s *SeriesStore) IngestOne(sample models.Sample) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range models.Channels {
		s.buffers[ch].Append(sample.Value(ch))
	}
	atomic.AddUint64(&s.ingested, 1)
	return s.snapshotLocked()
}

// IngestSnapshot replaces every channel with the projection of the last
// Capacity() samples, oldest first, and returns the resulting state.
func (s *SeriesStore) IngestSnapshot(samples []models.Sample) Snapshot {
	if len(samples) > s.capacity {
		samples = samples[len(samples)-s.capacity:]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range models.Channels {
		values := make([]float64, len(samples))
		for i, sample := range samples {
			values[i] = sample.Value(ch)
		}
		s.buffers[ch].ReplaceAll(values)
	}
	atomic.AddUint64(&s.snapshots, 1)
	return s.snapshotLocked()
}

// Snapshot returns a frozen copy of every channel.
func (s *SeriesStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *SeriesStore) snapshotLocked() Snapshot {
	snap := Snapshot{
		Capacity: s.capacity,
		Series:   make(map[models.Channel][]float64, len(s.buffers)),
	}
	for ch, b := range s.buffers {
		snap.Series[ch] = b.Values()
	}
	snap.Len = s.buffers[models.ChannelAX].Len()
	return snap
}

// Len returns the number of samples currently in the window.
func (s *SeriesStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffers[models.ChannelAX].Len()
}

func (s *SeriesStore) Capacity() int { return s.capacity }

// Stats returns the number of single ingests and snapshot replacements so far.
func (s *SeriesStore) Stats() (ingested, snapshots uint64) {
	return atomic.LoadUint64(&s.ingested), atomic.LoadUint64(&s.snapshots)
}

// Snapshot is a read-only copy of the store at one instant. All series
// have Len entries, oldest first.
type Snapshot struct {
	Len      int
	Capacity int
	Series   map[models.Channel][]float64
}

// Row returns entry i across models.Channels.
func (s Snapshot) Row(i int) []float64 {
	row := make([]float64, len(models.Channels))
	for c, ch := range models.Channels {
		if vals := s.Series[ch]; i >= 0 && i < len(vals) {
			row[c] = vals[i]
		}
	}
	return row
}

// Rows returns every entry, oldest first.
func (s Snapshot) Rows() [][]float64 {
	rows := make([][]float64, s.Len)
	for i := range rows {
		rows[i] = s.Row(i)
	}
	return rows
}

// Latest returns the newest row, or false for an empty snapshot.
func (s Snapshot) Latest() ([]float64, bool) {
	if s.Len == 0 {
		return nil, false
	}
	return s.Row(s.Len - 1), true
}

// Tail returns a snapshot limited to the most recent k entries. A
// non-positive k or one larger than Len returns s unchanged.
func (s Snapshot) Tail(k int) Snapshot {
	if k <= 0 || k >= s.Len {
		return s
	}
	out := Snapshot{
		Len:      k,
		Capacity: s.Capacity,
		Series:   make(map[models.Channel][]float64, len(s.Series)),
	}
	for ch, vals := range s.Series {
		out.Series[ch] = vals[len(vals)-k:]
	}
	return out
}

// Samples rebuilds the window as samples, oldest first.
func (s Snapshot) Samples() []models.Sample {
	out := make([]models.Sample, s.Len)
	for i := range out {
		out[i] = models.SampleFromRow(s.Row(i))
	}
	return out
}
