package memory

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/4vn/gridstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_SplitsIntoChunks(t *testing.T) {
	e := New(4)
	ctx := context.Background()

	rec, err := e.Create(ctx, strings.NewReader("0123456789"), gridstore.WriteOptions{Filename: "digits"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.Length)
	assert.Equal(t, int32(4), rec.ChunkSize)
	assert.Len(t, e.chunks[rec.ID], 3)
	assert.Equal(t, "89", string(e.chunks[rec.ID][2]))

	rc, err := e.OpenStream(ctx, rec)
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(b))
}

func TestCreate_ChunkSizeOverride(t *testing.T) {
	e := New(0)
	assert.Equal(t, int32(DefaultChunkSize), e.chunkSize)

	rec, err := e.Create(context.Background(), strings.NewReader("abcdef"), gridstore.WriteOptions{ChunkSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(2), rec.ChunkSize)
	assert.Len(t, e.chunks[rec.ID], 3)
}

func TestCreate_CanceledContext(t *testing.T) {
	e := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Create(ctx, strings.NewReader("data"), gridstore.WriteOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, e.Len())
}

func TestFindOne_NewestRevisionWins(t *testing.T) {
	e := New(8)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	e.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	_, err := e.Create(ctx, strings.NewReader("old"), gridstore.WriteOptions{Filename: "f"})
	require.NoError(t, err)
	newer, err := e.Create(ctx, strings.NewReader("new"), gridstore.WriteOptions{Filename: "f"})
	require.NoError(t, err)

	got, err := e.FindOne(ctx, gridstore.SelectFilename("f"))
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
}

func TestHasData(t *testing.T) {
	e := New(8)
	ctx := context.Background()

	rec, err := e.Create(ctx, strings.NewReader("payload"), gridstore.WriteOptions{})
	require.NoError(t, err)

	ok, err := e.HasData(ctx, rec)
	require.NoError(t, err)
	assert.True(t, ok)

	e.DropChunks(rec.ID)
	ok, err = e.HasData(ctx, rec)
	require.NoError(t, err)
	assert.False(t, ok)

	empty, err := e.Create(ctx, strings.NewReader(""), gridstore.WriteOptions{})
	require.NoError(t, err)
	ok, err = e.HasData(ctx, empty)
	require.NoError(t, err)
	assert.True(t, ok, "an empty file has no chunks to lose")
}

func TestDelete(t *testing.T) {
	e := New(8)
	ctx := context.Background()

	rec, err := e.Create(ctx, strings.NewReader("x"), gridstore.WriteOptions{Filename: "x"})
	require.NoError(t, err)

	require.ErrorIs(t, e.Delete(ctx, gridstore.SelectFilename("y")), gridstore.ErrNoMatch)
	require.NoError(t, e.Delete(ctx, gridstore.SelectID(rec.ID)))
	require.ErrorIs(t, e.Delete(ctx, gridstore.SelectID(rec.ID)), gridstore.ErrNoMatch)
	assert.Empty(t, e.chunks)
}

func TestMetadataIsCopied(t *testing.T) {
	e := New(8)
	meta := map[string]any{"k": "v"}

	rec, err := e.Create(context.Background(), strings.NewReader("x"), gridstore.WriteOptions{Metadata: meta})
	require.NoError(t, err)
	meta["k"] = "changed"
	assert.Equal(t, "v", rec.Metadata["k"])
}

func TestConcurrentUse(t *testing.T) {
	e := New(3)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := e.Create(ctx, strings.NewReader("concurrent"), gridstore.WriteOptions{Filename: "c"})
			if !assert.NoError(t, err) {
				return
			}
			_, err = e.FindOne(ctx, gridstore.SelectID(rec.ID))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, e.Len())
}
