package models

// Channel names one scalar series inside a sample.
type Channel string

const (
	ChannelAX  Channel = "ax"
	ChannelAY  Channel = "ay"
	ChannelAZ  Channel = "az"
	ChannelEMG Channel = "emg" // auxiliary, optional on the wire
)

// Channels is the fixed column order used by the store, the table and CSV output.
var Channels = []Channel{ChannelAX, ChannelAY, ChannelAZ, ChannelEMG}

func (c Channel) String() string { return string(c) }

// Label returns the upper-case display name used for chart titles and table headers.
func (c Channel) Label() string {
	switch c {
	case ChannelAX:
		return "AX"
	case ChannelAY:
		return "AY"
	case ChannelAZ:
		return "AZ"
	case ChannelEMG:
		return "EMG"
	}
	return string(c)
}

// Sample is one accelerometer reading as produced by the device.
// It is never mutated after decoding.
type Sample struct {
	AX        float64  `json:"ax" cbor:"ax"` // m/s²
	AY        float64  `json:"ay" cbor:"ay"`
	AZ        float64  `json:"az" cbor:"az"`
	EMG       *float64 `json:"emg,omitempty" cbor:"emg,omitempty"`
	Timestamp any      `json:"timestamp,omitempty" cbor:"timestamp,omitempty"` // opaque, passed through
}

// Value returns the reading for ch. An absent emg reads as 0.
func (s Sample) Value(ch Channel) float64 {
	switch ch {
	case ChannelAX:
		return s.AX
	case ChannelAY:
		return s.AY
	case ChannelAZ:
		return s.AZ
	case ChannelEMG:
		if s.EMG != nil {
			return *s.EMG
		}
	}
	return 0
}

// Row returns the sample projected onto Channels.
func (s Sample) Row() []float64 {
	row := make([]float64, len(Channels))
	for i, ch := range Channels {
		row[i] = s.Value(ch)
	}
	return row
}

// SampleFromRow rebuilds a sample from a row ordered like Channels.
func SampleFromRow(row []float64) Sample {
	var s Sample
	if len(row) > 0 {
		s.AX = row[0]
	}
	if len(row) > 1 {
		s.AY = row[1]
	}
	if len(row) > 2 {
		s.AZ = row[2]
	}
	if len(row) > 3 {
		emg := row[3]
		s.EMG = &emg
	}
	return s
}

// Float returns a pointer to v, for building samples with an emg reading.
func Float(v float64) *float64 { return &v }

func (Sample) CSVHeader() []string {
	h := make([]string, len(Channels))
	for i, ch := range Channels {
		h[i] = string(ch)
	}
	return h
}

func (s *Sample) CSVRow() []string {
	row := s.Row()
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = ftoa(v, -1)
	}
	return out
}
