package ws

import "codeberg.org/mutker/sensornode/internal/errors"

const (
	ErrNotConnected  = errors.ErrorCode("ws_not_connected")
	ErrConnectFailed = errors.ErrorCode("ws_connect_failed")
	ErrSendFailed    = errors.ErrorCode("ws_send_failed")
)
