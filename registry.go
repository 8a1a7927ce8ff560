package gridstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Registry writes, reads and removes files through an Engine. It holds no
// mutable state after New and is safe for concurrent use.
type Registry struct {
	engine  Engine
	log     zerolog.Logger
	metrics *metrics
}

func New(engine Engine, opts ...Option) (*Registry, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: nil engine", ErrInvalidArgument)
	}
	r := &Registry{
		engine: engine,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Write stores src as a new file. Invalid sources and options are rejected
// before the engine is touched.
func (r *Registry) Write(ctx context.Context, src Source, opts WriteOptions) (rec *FileRecord, err error) {
	start := time.Now()
	defer func() {
		r.metrics.observe("write", start, err)
		r.logResult("write", start, err, rec)
	}()

	if src == nil {
		return nil, ErrInvalidSource
	}
	opts, err = opts.withDefaults()
	if err != nil {
		return nil, err
	}

	rc, err := src.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	rec, err = r.engine.Create(ctx, rc, opts)
	if err != nil {
		return nil, fmt.Errorf("write %q: %w", opts.Filename, err)
	}
	return rec, nil
}

// Read resolves selector and returns the matching record with an open
// stream over its content.
func (r *Registry) Read(ctx context.Context, selector any) (f *File, err error) {
	start := time.Now()
	defer func() {
		r.metrics.observe("read", start, err)
		if f != nil {
			r.logResult("read", start, err, &f.FileRecord)
		} else {
			r.logResult("read", start, err, nil)
		}
	}()

	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}

	rec, err := r.engine.FindOne(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", sel, err)
	}

	found, err := r.engine.HasData(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("check data %s: %w", sel, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sel)
	}

	stream, err := r.engine.OpenStream(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", sel, err)
	}
	return &File{FileRecord: *rec, Stream: stream}, nil
}

// Remove deletes the file addressed by selector. A filename selector
// removes every revision stored under that name. Removing something that
// does not exist returns ErrNoMatch.
func (r *Registry) Remove(ctx context.Context, selector any) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.observe("remove", start, err)
		r.logResult("remove", start, err, nil)
	}()

	if !structured(selector) {
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidSelector, selector)
	}
	sel, err := ParseSelector(selector)
	if err != nil {
		return err
	}

	if err := r.engine.Delete(ctx, sel); err != nil {
		return fmt.Errorf("remove %s: %w", sel, err)
	}
	return nil
}

func (r *Registry) logResult(op string, start time.Time, err error, rec *FileRecord) {
	var ev *zerolog.Event
	switch {
	case err == nil:
		ev = r.log.Debug()
	case errors.Is(err, ErrNoMatch), errors.Is(err, ErrInvalidSelector), errors.Is(err, ErrInvalidSource), errors.Is(err, ErrInvalidArgument):
		ev = r.log.Warn().Err(err)
	default:
		ev = r.log.Error().Err(err)
	}
	ev = ev.Str("op", op).Dur("took", time.Since(start))
	if rec != nil {
		ev = ev.Str("id", rec.ID.Hex()).Str("filename", rec.Filename).Int64("length", rec.Length)
	}
	ev.Msg("gridstore " + op)
}
