package hotqueue

import "errors"

var (
	ErrInvalidQueueName = errors.New("hotqueue: invalid queue name")
	ErrUnsupportedType  = errors.New("hotqueue: unsupported message type")
)
