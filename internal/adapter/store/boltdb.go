package store

import (
	"bytes"
	"fmt"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	bucketMeta       = []byte("meta")
	keyActive        = []byte("active")
	collectionPrefix = []byte("collection_")
)

// openDB opens the bolt file and makes sure the meta bucket exists.
func openDB(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketMeta, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// activeBucket returns the name of the live collection bucket, or nil.
func activeBucket(tx *bbolt.Tx) []byte {
	meta := tx.Bucket(bucketMeta)
	if meta == nil {
		return nil
	}
	name := meta.Get(keyActive)
	if name == nil {
		return nil
	}
	return append([]byte(nil), name...)
}

// collectGarbage drops collection buckets other than the active one.
// They are staging buckets left behind by an interrupted rebuild.
func collectGarbage(db *bbolt.DB, log *zap.Logger) error {
	return db.Update(func(tx *bbolt.Tx) error {
		active := activeBucket(tx)

		var stale [][]byte
		err := tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			if bytes.HasPrefix(name, collectionPrefix) && !bytes.Equal(name, active) {
				stale = append(stale, append([]byte(nil), name...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, name := range stale {
			if err := tx.DeleteBucket(name); err != nil {
				return fmt.Errorf("failed to drop stale bucket %s: %w", name, err)
			}
			log.Warn("dropped stale staging bucket", zap.ByteString("bucket", name))
		}
		return nil
	})
}

// dropCollections removes every collection bucket and the active pointer.
func dropCollections(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		var names [][]byte
		err := tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			if bytes.HasPrefix(name, collectionPrefix) {
				names = append(names, append([]byte(nil), name...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMeta).Delete(keyActive)
	})
}
