package gridstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Source is the content handed to Write. It is one of StreamSource,
// BytesSource or PathSource.
type Source interface {
	open() (io.ReadCloser, error)
}

// StreamSource is read until EOF. It is not closed by Write.
type StreamSource struct {
	io.Reader
}

// BytesSource is written in full.
type BytesSource []byte

// PathSource names a local file that is opened and streamed.
type PathSource string

func (s StreamSource) open() (io.ReadCloser, error) {
	if s.Reader == nil {
		return nil, ErrInvalidSource
	}
	return io.NopCloser(s.Reader), nil
}

func (s BytesSource) open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s)), nil
}

func (s PathSource) open() (io.ReadCloser, error) {
	if s == "" {
		return nil, ErrInvalidSource
	}
	f, err := os.Open(string(s))
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	return f, nil
}

// SourceOf classifies v once: a Source is returned as is, []byte becomes
// a BytesSource, a string a PathSource and an io.Reader a StreamSource.
func SourceOf(v any) (Source, error) {
	switch t := v.(type) {
	case nil:
		return nil, ErrInvalidSource
	case Source:
		return t, nil
	case []byte:
		return BytesSource(t), nil
	case string:
		if t == "" {
			return nil, ErrInvalidSource
		}
		return PathSource(t), nil
	case io.Reader:
		return StreamSource{Reader: t}, nil
	}
	return nil, fmt.Errorf("%w: got %T", ErrInvalidSource, v)
}
