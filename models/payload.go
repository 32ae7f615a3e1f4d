package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Encoding selects the wire format of a payload.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

// ContentType returns the MIME type used on HTTP transports.
func (e Encoding) ContentType() string {
	if e == EncodingCBOR {
		return "application/cbor"
	}
	return "application/json"
}

// EncodingFromContentType maps a Content-Type header back to an Encoding.
// Anything that is not CBOR is treated as JSON.
func EncodingFromContentType(ct string) Encoding {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "application/cbor") {
		return EncodingCBOR
	}
	return EncodingJSON
}

// PayloadKind tags the shape a transport delivered.
type PayloadKind int

const (
	PayloadSingle PayloadKind = iota + 1
	PayloadSnapshot
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadSingle:
		return "single"
	case PayloadSnapshot:
		return "snapshot"
	}
	return "unknown"
}

// Payload is either one new sample or a full history, oldest first.
type Payload struct {
	Kind    PayloadKind
	Sample  Sample
	Samples []Sample
}

func SinglePayload(s Sample) Payload { return Payload{Kind: PayloadSingle, Sample: s} }

func SnapshotPayload(samples []Sample) Payload {
	return Payload{Kind: PayloadSnapshot, Samples: samples}
}

// ErrDecode marks payloads that could not be turned into samples.
var ErrDecode = errors.New("decode payload")

// wireSample keeps the required axes as pointers so a missing field
// can be told apart from a zero reading.
type wireSample struct {
	AX        *float64 `json:"ax" cbor:"ax"`
	AY        *float64 `json:"ay" cbor:"ay"`
	AZ        *float64 `json:"az" cbor:"az"`
	EMG       *float64 `json:"emg" cbor:"emg"`
	Timestamp any      `json:"timestamp" cbor:"timestamp"`
}

func (w wireSample) sample() (Sample, error) {
	switch {
	case w.AX == nil:
		return Sample{}, fmt.Errorf("%w: missing field ax", ErrDecode)
	case w.AY == nil:
		return Sample{}, fmt.Errorf("%w: missing field ay", ErrDecode)
	case w.AZ == nil:
		return Sample{}, fmt.Errorf("%w: missing field az", ErrDecode)
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{{"ax", w.AX}, {"ay", w.AY}, {"az", w.AZ}, {"emg", w.EMG}} {
		if f.v != nil && (math.IsNaN(*f.v) || math.IsInf(*f.v, 0)) {
			return Sample{}, fmt.Errorf("%w: field %s is not finite", ErrDecode, f.name)
		}
	}
	return Sample{AX: *w.AX, AY: *w.AY, AZ: *w.AZ, EMG: w.EMG, Timestamp: w.Timestamp}, nil
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("models: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		// opaque timestamps may carry maps; keep them JSON-compatible
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("models: CBOR decoder initialization failed: " + err.Error())
	}
}

// DecodePayload inspects the top-level shape of data and returns the
// matching tagged payload: an object is a single sample, an array is a
// historical snapshot.
func DecodePayload(data []byte, enc Encoding) (Payload, error) {
	if enc == EncodingCBOR {
		return decodeCBOR(data)
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Payload{}, fmt.Errorf("%w: empty body", ErrDecode)
	}
	switch trimmed[0] {
	case '{':
		var w wireSample
		if err := json.Unmarshal(trimmed, &w); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		s, err := w.sample()
		if err != nil {
			return Payload{}, err
		}
		return SinglePayload(s), nil
	case '[':
		var ws []wireSample
		if err := json.Unmarshal(trimmed, &ws); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return snapshotFromWire(ws)
	}
	return Payload{}, fmt.Errorf("%w: expected object or array, got %q", ErrDecode, trimmed[0])
}

// CBOR major types (RFC 8949 §3.1).
const (
	cborMajorArray = 4
	cborMajorMap   = 5
)

func decodeCBOR(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, fmt.Errorf("%w: empty body", ErrDecode)
	}
	switch data[0] >> 5 {
	case cborMajorMap:
		var w wireSample
		if err := cborDec.Unmarshal(data, &w); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		s, err := w.sample()
		if err != nil {
			return Payload{}, err
		}
		return SinglePayload(s), nil
	case cborMajorArray:
		var ws []wireSample
		if err := cborDec.Unmarshal(data, &ws); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return snapshotFromWire(ws)
	}
	return Payload{}, fmt.Errorf("%w: expected CBOR map or array, got major type %d", ErrDecode, data[0]>>5)
}

func snapshotFromWire(ws []wireSample) (Payload, error) {
	samples := make([]Sample, 0, len(ws))
	for i, w := range ws {
		s, err := w.sample()
		if err != nil {
			return Payload{}, fmt.Errorf("element %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return SnapshotPayload(samples), nil
}

// Encode serialises one sample or a sample sequence (pass []Sample) in enc.
func Encode(v any, enc Encoding) ([]byte, error) {
	if enc == EncodingCBOR {
		return cborEnc.Marshal(v)
	}
	return json.Marshal(v)
}
