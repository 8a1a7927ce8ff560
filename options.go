package gridstore

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const DefaultFilename = "unnamed_file"

// Mode controls what happens to earlier files stored under the same name.
type Mode string

const (
	// ModeWrite stores a new revision next to any existing ones.
	ModeWrite Mode = "w"
	// ModeOverwrite stores a new revision and then deletes the older ones.
	ModeOverwrite Mode = "w+"
)

type WriteOptions struct {
	Filename    string
	ContentType string
	Mode        Mode
	// ChunkSize overrides the engine chunk size in bytes when positive.
	ChunkSize int32
	Metadata  map[string]any
}

func (o WriteOptions) withDefaults() (WriteOptions, error) {
	if o.Filename == "" {
		o.Filename = DefaultFilename
	}
	if o.Mode == "" {
		o.Mode = ModeWrite
	}
	if o.Mode != ModeWrite && o.Mode != ModeOverwrite {
		return o, fmt.Errorf("%w: unknown write mode %q", ErrInvalidArgument, o.Mode)
	}
	if o.ChunkSize < 0 {
		return o, fmt.Errorf("%w: negative chunk size %d", ErrInvalidArgument, o.ChunkSize)
	}
	return o, nil
}

// Option configures a Registry.
type Option func(*Registry) error

func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) error {
		r.log = l
		return nil
	}
}

// WithMetrics registers the registry's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(r *Registry) error {
		m, err := newMetrics(reg)
		if err != nil {
			return err
		}
		r.metrics = m
		return nil
	}
}
