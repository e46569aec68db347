package wire

import "codeberg.org/mutker/sensornode/internal/errors"

const (
	ErrMalformedMessage = errors.ErrorCode("wire_malformed_message")
)
