package kafka

import "time"

const (
	// MaxPollWait is the longest a fetch waits for new data before returning.
	MaxPollWait = 500 * time.Millisecond
	// WriteTimeout bounds a single synchronous produce call.
	WriteTimeout = 10 * time.Second
	// CommitInterval of zero makes kafka-go commit synchronously inside CommitMessages,
	// so a returned nil means the offset is durable.
	CommitInterval = 0
)
