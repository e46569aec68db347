// Package wire encodes telemetry batches into the binary message format
// the collector expects: a protobuf message carrying the node identifier
// and an ordered sequence of samples.
//
//	SensorData { id = 1 (string), samples = 2 (repeated Sample) }
//	Sample     { time = 1 (float), acceleration = 2, gyroscope = 3, magnetometer = 4 }
//	Vector     { x = 1 (float), y = 2 (float), z = 3 (float) }
package wire

import (
	"math"

	"codeberg.org/mutker/sensornode/internal/errors"
	"codeberg.org/mutker/sensornode/internal/telemetry"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldID      = 1
	fieldSamples = 2

	fieldTime         = 1
	fieldAcceleration = 2
	fieldGyroscope    = 3
	fieldMagnetometer = 4

	fieldX = 1
	fieldY = 2
	fieldZ = 3
)

// Batch is one outbound message: a node identifier plus the samples
// drained for this forwarder cycle.
type Batch struct {
	NodeID  string
	Samples []telemetry.Sample
}

// Marshal serializes a batch to protobuf wire format.
func Marshal(b Batch) []byte {
	out := protowire.AppendTag(nil, fieldID, protowire.BytesType)
	out = protowire.AppendString(out, b.NodeID)

	for i := range b.Samples {
		out = protowire.AppendTag(out, fieldSamples, protowire.BytesType)
		out = protowire.AppendBytes(out, appendSample(nil, &b.Samples[i]))
	}

	return out
}

func appendSample(out []byte, s *telemetry.Sample) []byte {
	out = protowire.AppendTag(out, fieldTime, protowire.Fixed32Type)
	out = protowire.AppendFixed32(out, math.Float32bits(s.Time))

	out = protowire.AppendTag(out, fieldAcceleration, protowire.BytesType)
	out = protowire.AppendBytes(out, appendVector(nil, s.Acceleration))

	out = protowire.AppendTag(out, fieldGyroscope, protowire.BytesType)
	out = protowire.AppendBytes(out, appendVector(nil, s.Gyroscope))

	out = protowire.AppendTag(out, fieldMagnetometer, protowire.BytesType)
	out = protowire.AppendBytes(out, appendVector(nil, s.Magnetometer))

	return out
}

func appendVector(out []byte, v telemetry.Vector) []byte {
	out = protowire.AppendTag(out, fieldX, protowire.Fixed32Type)
	out = protowire.AppendFixed32(out, math.Float32bits(v.X))
	out = protowire.AppendTag(out, fieldY, protowire.Fixed32Type)
	out = protowire.AppendFixed32(out, math.Float32bits(v.Y))
	out = protowire.AppendTag(out, fieldZ, protowire.Fixed32Type)
	out = protowire.AppendFixed32(out, math.Float32bits(v.Z))

	return out
}

// Unmarshal decodes a batch from protobuf wire format. Unknown fields
// are skipped so newer collectors stay decodable.
func Unmarshal(data []byte) (Batch, error) {
	errFactory := errors.New()
	var b Batch

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Batch{}, errFactory.Wrap(ErrMalformedMessage, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldID && typ == protowire.BytesType:
			id, n := protowire.ConsumeString(data)
			if n < 0 {
				return Batch{}, errFactory.Wrap(ErrMalformedMessage, protowire.ParseError(n))
			}
			b.NodeID = id
			data = data[n:]
		case num == fieldSamples && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Batch{}, errFactory.Wrap(ErrMalformedMessage, protowire.ParseError(n))
			}
			sample, err := consumeSample(raw)
			if err != nil {
				return Batch{}, err
			}
			b.Samples = append(b.Samples, sample)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Batch{}, errFactory.Wrap(ErrMalformedMessage, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	return b, nil
}

func consumeSample(data []byte) (telemetry.Sample, error) {
	errFactory := errors.New()
	var s telemetry.Sample

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return telemetry.Sample{}, errFactory.Wrap(ErrMalformedMessage, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldTime && typ == protowire.Fixed32Type:
			bits, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return telemetry.Sample{}, errFactory.Wrap(ErrMalformedMessage, protowire.ParseError(n))
			}
			s.Time = math.Float32frombits(bits)
			data = data[n:]
		case typ == protowire.BytesType && (num == fieldAcceleration || num == fieldGyroscope || num == fieldMagnetometer):
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return telemetry.Sample{}, errFactory.Wrap(ErrMalformedMessage, protowire.ParseError(n))
			}
			v, err := consumeVector(raw)
			if err != nil {
				return telemetry.Sample{}, err
			}
			switch num {
			case fieldAcceleration:
				s.Acceleration = v
			case fieldGyroscope:
				s.Gyroscope = v
			case fieldMagnetometer:
				s.Magnetometer = v
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return telemetry.Sample{}, errFactory.Wrap(ErrMalformedMessage, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	return s, nil
}

func consumeVector(data []byte) (telemetry.Vector, error) {
	errFactory := errors.New()
	var v telemetry.Vector

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return telemetry.Vector{}, errFactory.Wrap(ErrMalformedMessage, protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.Fixed32Type {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return telemetry.Vector{}, errFactory.Wrap(ErrMalformedMessage, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		bits, n := protowire.ConsumeFixed32(data)
		if n < 0 {
			return telemetry.Vector{}, errFactory.Wrap(ErrMalformedMessage, protowire.ParseError(n))
		}
		switch num {
		case fieldX:
			v.X = math.Float32frombits(bits)
		case fieldY:
			v.Y = math.Float32frombits(bits)
		case fieldZ:
			v.Z = math.Float32frombits(bits)
		}
		data = data[n:]
	}

	return v, nil
}
