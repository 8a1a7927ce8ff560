// Package gridstore is a small file registry on top of a chunked object
// store such as MongoDB GridFS. It turns a byte source into a stored file,
// reads it back by identifier or filename and deletes it. Chunk layout,
// indexes and queries belong to the Engine.
package gridstore

import (
	"context"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Engine is the chunked storage backend a Registry delegates to.
type Engine interface {
	// Create stores everything read from r as a new file and returns the
	// finalized record.
	Create(ctx context.Context, r io.Reader, opts WriteOptions) (*FileRecord, error)
	// FindOne returns the record addressed by sel, or ErrNoMatch.
	FindOne(ctx context.Context, sel Selector) (*FileRecord, error)
	// HasData reports whether the chunk data backing rec is present.
	HasData(ctx context.Context, rec *FileRecord) (bool, error)
	OpenStream(ctx context.Context, rec *FileRecord) (io.ReadCloser, error)
	// Delete removes every record addressed by sel together with its chunks.
	// It returns ErrNoMatch when nothing was addressed.
	Delete(ctx context.Context, sel Selector) error
}

// FileRecord is the metadata document of a stored file.
type FileRecord struct {
	ID          primitive.ObjectID `json:"id"`
	Filename    string             `json:"filename"`
	ContentType string             `json:"contentType,omitempty"`
	Length      int64              `json:"length"`
	ChunkSize   int32              `json:"chunkSize"`
	UploadDate  time.Time          `json:"uploadDate"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
}

// File is a FileRecord with an open stream over its content. The caller
// must Close it.
type File struct {
	FileRecord
	Stream io.ReadCloser `json:"-"`
}

func (f *File) Read(p []byte) (int, error) {
	return f.Stream.Read(p)
}

func (f *File) Close() error {
	return f.Stream.Close()
}
