package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"shoprag/internal/adapter/memstore"
	"shoprag/internal/domain"
	"shoprag/internal/logger"
)

// Options configures BoltVectorStore.
type Options struct {
	// BatchSize is the number of documents written per transaction.
	BatchSize int
	// ConfigHash identifies the embedding setup; a change resets the store.
	ConfigHash string
	// OnBatch is called after each staged batch with the running total.
	OnBatch func(written int)
	Logger  *zap.Logger
}

// BoltVectorStore persists the knowledge collection in BoltDB and serves
// searches from an in-memory collection loaded from the active bucket.
//
// Replace stages the new collection in a fresh bucket and flips the active
// pointer in one transaction, so a crash mid-rebuild leaves the previous
// collection live. Leftover staging buckets are dropped on open.
type BoltVectorStore struct {
	db      *bbolt.DB
	opts    Options
	log     *zap.Logger
	writeMu sync.Mutex
	live    atomic.Pointer[memstore.VectorCollection]
}

type storedDoc struct {
	Text     string            `json:"t"`
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
}

// OpenBoltVectorStore opens (or creates) the store at path.
func OpenBoltVectorStore(path string, opts Options) (*BoltVectorStore, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	log := logger.OrNop(opts.Logger)

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	mig, err := migrate(db, opts.ConfigHash)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	if mig.NeedsReset {
		log.Warn("knowledge store reset, rebuild required", zap.String("reason", mig.Reason))
	}

	if err := collectGarbage(db, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to collect staging buckets: %w", err)
	}

	s := &BoltVectorStore{db: db, opts: opts, log: log}
	live, err := s.load()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	s.live.Store(live)

	return s, nil
}

// load reads the active bucket into a new in-memory collection.
func (s *BoltVectorStore) load() (*memstore.VectorCollection, error) {
	var docs []domain.KnowledgeDocument

	err := s.db.View(func(tx *bbolt.Tx) error {
		name := activeBucket(tx)
		if name == nil {
			return nil
		}
		b := tx.Bucket(name)
		if b == nil {
			return fmt.Errorf("active bucket %s missing", name)
		}

		return b.ForEach(func(k, v []byte) error {
			var stored storedDoc
			if err := json.Unmarshal(v, &stored); err != nil {
				s.log.Warn("skipping corrupted document", zap.ByteString("id", k), zap.Error(err))
				return nil
			}
			docs = append(docs, domain.KnowledgeDocument{
				ID:        string(k),
				Text:      stored.Text,
				Embedding: stored.Vector,
				Metadata:  stored.Metadata,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	c := memstore.NewVectorCollection()
	if err := c.Replace(context.Background(), docs); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace writes docs to a staging bucket and atomically makes it active.
func (s *BoltVectorStore) Replace(ctx context.Context, docs []domain.KnowledgeDocument) error {
	// Validate before touching the file.
	next := memstore.NewVectorCollection()
	if err := next.Replace(ctx, docs); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	staging := []byte(string(collectionPrefix) + uuid.NewString())
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucket(staging)
		return err
	}); err != nil {
		return fmt.Errorf("failed to create staging bucket: %w", err)
	}

	if err := s.stage(ctx, staging, docs); err != nil {
		if dropErr := s.dropBucket(staging); dropErr != nil {
			s.log.Warn("failed to drop staging bucket", zap.ByteString("bucket", staging), zap.Error(dropErr))
		}
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		old := activeBucket(tx)
		if err := tx.Bucket(bucketMeta).Put(keyActive, staging); err != nil {
			return err
		}
		if old != nil && tx.Bucket(old) != nil {
			return tx.DeleteBucket(old)
		}
		return nil
	})
	if err != nil {
		if dropErr := s.dropBucket(staging); dropErr != nil {
			s.log.Warn("failed to drop staging bucket", zap.ByteString("bucket", staging), zap.Error(dropErr))
		}
		return fmt.Errorf("failed to activate collection: %w", err)
	}

	s.live.Store(next)
	return nil
}

// stage writes docs into bucket, one transaction per batch.
func (s *BoltVectorStore) stage(ctx context.Context, bucket []byte, docs []domain.KnowledgeDocument) error {
	for start := 0; start < len(docs); start += s.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + s.opts.BatchSize
		if end > len(docs) {
			end = len(docs)
		}

		err := s.db.Update(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucket)
			if b == nil {
				return fmt.Errorf("staging bucket %s not found", bucket)
			}
			return putDocs(b, docs[start:end])
		})
		if err != nil {
			return fmt.Errorf("failed to write batch at %d: %w", start, err)
		}

		if s.opts.OnBatch != nil {
			s.opts.OnBatch(end)
		}
	}
	return nil
}

func putDocs(b *bbolt.Bucket, docs []domain.KnowledgeDocument) error {
	for _, d := range docs {
		data, err := json.Marshal(storedDoc{
			Text:     d.Text,
			Vector:   d.Embedding,
			Metadata: d.Metadata,
		})
		if err != nil {
			return err
		}
		if err := b.Put([]byte(d.ID), data); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoltVectorStore) dropBucket(name []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(name) == nil {
			return nil
		}
		return tx.DeleteBucket(name)
	})
}

// Upsert writes docs into the active collection in place.
func (s *BoltVectorStore) Upsert(ctx context.Context, docs []domain.KnowledgeDocument) error {
	if len(docs) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.live.Load()
	// Check dimensions against the live collection first.
	probe := memstore.NewVectorCollection()
	if err := probe.Replace(ctx, docs); err != nil {
		return err
	}
	if cur.Count() > 0 {
		if _, err := cur.Search(ctx, docs[0].Embedding, 1); err != nil {
			return err
		}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		name := activeBucket(tx)
		if name == nil {
			name = []byte(string(collectionPrefix) + uuid.NewString())
			if err := tx.Bucket(bucketMeta).Put(keyActive, name); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucketIfNotExists(name)
		if err != nil {
			return err
		}
		return putDocs(b, docs)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert documents: %w", err)
	}

	return cur.Upsert(ctx, docs)
}

// Search ranks the live collection by cosine similarity.
func (s *BoltVectorStore) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredDocument, error) {
	return s.live.Load().Search(ctx, query, k)
}

// Get returns the live document with id.
func (s *BoltVectorStore) Get(id string) (domain.KnowledgeDocument, bool) {
	return s.live.Load().Get(id)
}

func (s *BoltVectorStore) Count() int {
	return s.live.Load().Count()
}

// ActiveBucket returns the name of the live bucket, "" when empty.
func (s *BoltVectorStore) ActiveBucket() string {
	var name []byte
	_ = s.db.View(func(tx *bbolt.Tx) error {
		name = activeBucket(tx)
		return nil
	})
	return string(name)
}

func (s *BoltVectorStore) Close() error {
	return s.db.Close()
}
