package mongodb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/4vn/gridstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DefaultBucket    = "fs"
	DefaultChunkSize = 255 * 1024 // 255 KB per chunk
	FilesColl        = ".files"
	ChunksColl       = ".chunks"
)

type Option func(*engineConfig)

type engineConfig struct {
	bucket    string
	chunkSize int32
}

func WithBucket(name string) Option {
	return func(c *engineConfig) { c.bucket = name }
}

func WithChunkSize(n int32) Option {
	return func(c *engineConfig) { c.chunkSize = n }
}

// Engine implements gridstore.Engine on a GridFS bucket.
type Engine struct {
	bucket     *gridfs.Bucket
	filesColl  *mongo.Collection
	chunksColl *mongo.Collection
}

func NewEngine(db *mongo.Database, opts ...Option) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil database", gridstore.ErrInvalidArgument)
	}
	cfg := engineConfig{bucket: DefaultBucket, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bucket == "" || cfg.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: bucket %q chunk size %d", gridstore.ErrInvalidArgument, cfg.bucket, cfg.chunkSize)
	}

	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(cfg.bucket).SetChunkSizeBytes(cfg.chunkSize))
	if err != nil {
		return nil, fmt.Errorf("error opening bucket: %w", err)
	}

	return &Engine{
		bucket:     bucket,
		filesColl:  db.Collection(cfg.bucket + FilesColl),
		chunksColl: db.Collection(cfg.bucket + ChunksColl),
	}, nil
}

// NewRegistry is the usual entry point: a Registry over the default bucket
// of db.
func NewRegistry(db *mongo.Database, opts ...gridstore.Option) (*gridstore.Registry, error) {
	engine, err := NewEngine(db)
	if err != nil {
		return nil, err
	}
	return gridstore.New(engine, opts...)
}

type fileDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Length      int64              `bson:"length"`
	ChunkSize   int32              `bson:"chunkSize"`
	UploadDate  time.Time          `bson:"uploadDate"`
	Filename    string             `bson:"filename"`
	ContentType string             `bson:"contentType,omitempty"`
	Metadata    bson.M             `bson:"metadata,omitempty"`
}

func (d fileDoc) record() *gridstore.FileRecord {
	return &gridstore.FileRecord{
		ID:          d.ID,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Length:      d.Length,
		ChunkSize:   d.ChunkSize,
		UploadDate:  d.UploadDate,
		Metadata:    map[string]any(d.Metadata),
	}
}

func (e *Engine) Create(ctx context.Context, r io.Reader, opts gridstore.WriteOptions) (*gridstore.FileRecord, error) {
	uploadOpts := options.GridFSUpload()
	if opts.ChunkSize > 0 {
		uploadOpts.SetChunkSizeBytes(opts.ChunkSize)
	}
	if opts.Metadata != nil {
		uploadOpts.SetMetadata(opts.Metadata)
	}

	us, err := e.bucket.OpenUploadStream(opts.Filename, uploadOpts)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := us.SetWriteDeadline(deadline); err != nil {
			_ = us.Abort()
			return nil, err
		}
	}

	if _, err := io.Copy(us, ctxReader{ctx: ctx, r: r}); err != nil {
		_ = us.Abort()
		return nil, err
	}
	if err := us.Close(); err != nil {
		return nil, err
	}

	fileID, ok := us.FileID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("unexpected file id type %T", us.FileID)
	}

	// GridFS drivers no longer write contentType themselves.
	if opts.ContentType != "" {
		_, err = e.filesColl.UpdateOne(ctx, bson.M{"_id": fileID}, bson.M{"$set": bson.M{"contentType": opts.ContentType}})
		if err != nil {
			return nil, fmt.Errorf("error setting content type: %w", err)
		}
	}

	if opts.Mode == gridstore.ModeOverwrite {
		older, err := e.ids(ctx, bson.M{"filename": opts.Filename, "_id": bson.M{"$ne": fileID}})
		if err != nil {
			return nil, err
		}
		if err := e.deleteAll(ctx, older); err != nil {
			return nil, fmt.Errorf("error deleting older revisions: %w", err)
		}
	}

	return e.findOne(ctx, bson.M{"_id": fileID})
}

func (e *Engine) FindOne(ctx context.Context, sel gridstore.Selector) (*gridstore.FileRecord, error) {
	filter, err := filterFor(sel)
	if err != nil {
		return nil, err
	}
	return e.findOne(ctx, filter)
}

func (e *Engine) findOne(ctx context.Context, filter bson.M) (*gridstore.FileRecord, error) {
	var doc fileDoc
	// newest revision wins for filename lookups
	opts := options.FindOne().SetSort(bson.D{{Key: "uploadDate", Value: -1}, {Key: "_id", Value: -1}})
	err := e.filesColl.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, gridstore.ErrNoMatch
	}
	if err != nil {
		return nil, err
	}
	return doc.record(), nil
}

func (e *Engine) HasData(ctx context.Context, rec *gridstore.FileRecord) (bool, error) {
	if rec.Length == 0 {
		return true, nil
	}
	n, err := e.chunksColl.CountDocuments(ctx, bson.M{"files_id": rec.ID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (e *Engine) OpenStream(ctx context.Context, rec *gridstore.FileRecord) (io.ReadCloser, error) {
	ds, err := e.bucket.OpenDownloadStream(rec.ID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %v", gridstore.ErrNoMatch, err)
	}
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := ds.SetReadDeadline(deadline); err != nil {
			_ = ds.Close()
			return nil, err
		}
	}
	return ds, nil
}

func (e *Engine) Delete(ctx context.Context, sel gridstore.Selector) error {
	if sel.Kind == gridstore.ByID {
		err := e.bucket.DeleteContext(ctx, sel.ID)
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return gridstore.ErrNoMatch
		}
		return err
	}

	filter, err := filterFor(sel)
	if err != nil {
		return err
	}
	ids, err := e.ids(ctx, filter)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return gridstore.ErrNoMatch
	}
	return e.deleteAll(ctx, ids)
}

func (e *Engine) ids(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	cur, err := e.filesColl.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

// deleteAll tolerates files that vanished since they were listed.
func (e *Engine) deleteAll(ctx context.Context, ids []primitive.ObjectID) error {
	for _, id := range ids {
		err := e.bucket.DeleteContext(ctx, id)
		if err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("error deleting file %s: %w", id.Hex(), err)
		}
	}
	return nil
}

func filterFor(sel gridstore.Selector) (bson.M, error) {
	switch sel.Kind {
	case gridstore.ByID:
		return bson.M{"_id": sel.ID}, nil
	case gridstore.ByFilename:
		return bson.M{"filename": sel.Filename}, nil
	}
	return nil, gridstore.ErrInvalidSelector
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Store owns a client connection and the engine bound to it.
type Store struct {
	*Engine
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri, checks the primary is reachable and binds an
// engine to dbName.
func Open(ctx context.Context, uri, dbName string, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// check connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(dbName)
	engine, err := NewEngine(db, opts...)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &Store{Engine: engine, client: client, db: db}, nil
}

func (s *Store) Database() *mongo.Database {
	return s.db
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %w", err)
	}
	return nil
}
