package hotqueue

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultPrefix        = "hotqueue"
	defaultBlockInterval = time.Second
)

type Options struct {
	Prefix        string
	Codec         Codec
	Logger        zerolog.Logger
	Metrics       *Metrics
	BlockInterval time.Duration
}

type Option func(*Options)

func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

// WithCodec sets how messages are encoded. JSONCodec is used when unset.
func WithCodec(c Codec) Option {
	return func(o *Options) { o.Codec = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithBlockInterval bounds a single BLPOP round while blocking.
// Longer waits are split into rounds so a cancelled context is noticed
// within one interval. Values are truncated to whole seconds (minimum 1s).
func WithBlockInterval(d time.Duration) Option {
	return func(o *Options) { o.BlockInterval = d }
}

type readOptions struct {
	block   bool
	timeout time.Duration
}

// ReadOption configures Get, Consume and the worker wrappers.
type ReadOption func(*readOptions)

// Block controls whether a read waits for a message to become available.
func Block(b bool) ReadOption {
	return func(o *readOptions) { o.block = b }
}

// Timeout bounds a blocking read. Zero means wait forever.
func Timeout(d time.Duration) ReadOption {
	return func(o *readOptions) {
		if d < 0 {
			d = 0
		}
		o.timeout = d
	}
}

func applyReadOptions(def readOptions, opts []ReadOption) readOptions {
	for _, fn := range opts {
		if fn != nil {
			fn(&def)
		}
	}
	return def
}
