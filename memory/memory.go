// Package memory is a process-local gridstore.Engine. Records and chunks
// are kept apart the way GridFS keeps its two collections, so a record can
// outlive its data.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/4vn/gridstore"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultChunkSize = 255 * 1024

type Engine struct {
	mu        sync.RWMutex
	chunkSize int32
	files     map[primitive.ObjectID]gridstore.FileRecord
	chunks    map[primitive.ObjectID][][]byte
	now       func() time.Time
}

func New(chunkSize int32) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Engine{
		chunkSize: chunkSize,
		files:     make(map[primitive.ObjectID]gridstore.FileRecord),
		chunks:    make(map[primitive.ObjectID][][]byte),
		now:       time.Now,
	}
}

func (e *Engine) Create(ctx context.Context, r io.Reader, opts gridstore.WriteOptions) (*gridstore.FileRecord, error) {
	size := e.chunkSize
	if opts.ChunkSize > 0 {
		size = opts.ChunkSize
	}

	var parts [][]byte
	var length int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf := make([]byte, size)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			parts = append(parts, buf[:n])
			length += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	rec := gridstore.FileRecord{
		ID:          primitive.NewObjectID(),
		Filename:    opts.Filename,
		ContentType: opts.ContentType,
		Length:      length,
		ChunkSize:   size,
		// Mongo keeps millisecond precision.
		UploadDate: e.now().UTC().Truncate(time.Millisecond),
		Metadata:   copyMetadata(opts.Metadata),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[rec.ID] = rec
	e.chunks[rec.ID] = parts
	if opts.Mode == gridstore.ModeOverwrite {
		for id, f := range e.files {
			if id != rec.ID && f.Filename == rec.Filename {
				delete(e.files, id)
				delete(e.chunks, id)
			}
		}
	}
	out := rec
	return &out, nil
}

func (e *Engine) FindOne(ctx context.Context, sel gridstore.Selector) (*gridstore.FileRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	matches := e.match(sel)
	if len(matches) == 0 {
		return nil, gridstore.ErrNoMatch
	}
	rec := e.files[matches[0]]
	return &rec, nil
}

func (e *Engine) HasData(ctx context.Context, rec *gridstore.FileRecord) (bool, error) {
	if rec.Length == 0 {
		return true, nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.chunks[rec.ID]) > 0, nil
}

func (e *Engine) OpenStream(ctx context.Context, rec *gridstore.FileRecord) (io.ReadCloser, error) {
	e.mu.RLock()
	parts := e.chunks[rec.ID]
	e.mu.RUnlock()

	readers := make([]io.Reader, 0, len(parts))
	for _, p := range parts {
		readers = append(readers, bytes.NewReader(p))
	}
	return io.NopCloser(io.MultiReader(readers...)), nil
}

func (e *Engine) Delete(ctx context.Context, sel gridstore.Selector) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	matches := e.match(sel)
	if len(matches) == 0 {
		return gridstore.ErrNoMatch
	}
	for _, id := range matches {
		delete(e.files, id)
		delete(e.chunks, id)
	}
	return nil
}

// DropChunks deletes the data of a file but keeps its record.
func (e *Engine) DropChunks(id primitive.ObjectID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.chunks, id)
}

// Len returns the number of stored records.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.files)
}

// match returns the ids addressed by sel, newest upload first.
func (e *Engine) match(sel gridstore.Selector) []primitive.ObjectID {
	var ids []primitive.ObjectID
	switch sel.Kind {
	case gridstore.ByID:
		if _, ok := e.files[sel.ID]; ok {
			ids = append(ids, sel.ID)
		}
	case gridstore.ByFilename:
		for id, f := range e.files {
			if f.Filename == sel.Filename {
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := e.files[ids[i]], e.files[ids[j]]
		if !a.UploadDate.Equal(b.UploadDate) {
			return a.UploadDate.After(b.UploadDate)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) > 0
	})
	return ids
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
