package kvstore

import (
	"context"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	connectTimeout = 5 * time.Second
	boltBucket     = "session"
)

// Bolt persists values in a single file bbolt database.
//
// The database is opened for each operation and closed straight after, so
// several processes (the CLI and a running server) can share one file.
type Bolt struct {
	path string
}

// OpenBolt makes sure the database file and its bucket exist.
func OpenBolt(path string) (*Bolt, error) {
	b := &Bolt{path: path}

	err := b.update(func(bkt *bolt.Bucket) error { return nil })
	if err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Bolt) open() (*bolt.DB, error) {
	db, err := bolt.Open(b.path, 0600, &bolt.Options{Timeout: connectTimeout})
	if err != nil {
		return nil, unavailable(err, "failed opening %s", b.path)
	}
	return db, nil
}

func (b *Bolt) update(fn func(*bolt.Bucket) error) error {
	db, err := b.open()
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		if err != nil {
			return err
		}
		return fn(bkt)
	})
	if err != nil {
		return unavailable(err, "failed update of %s", b.path)
	}
	return nil
}

func (b *Bolt) Get(_ context.Context, key string) (string, bool, error) {
	db, err := b.open()
	if err != nil {
		return "", false, err
	}
	defer db.Close()

	var (
		value string
		found bool
	)
	err = db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(boltBucket))
		if bkt == nil {
			return nil
		}
		// the slice is only valid inside the transaction, string() copies it
		if v := bkt.Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, unavailable(err, "failed read of %s", b.path)
	}

	return value, found, nil
}

func (b *Bolt) Set(_ context.Context, values map[string]string) error {
	return b.update(func(bkt *bolt.Bucket) error {
		for k, v := range values {
			if err := bkt.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Delete(_ context.Context, keys ...string) error {
	return b.update(func(bkt *bolt.Bucket) error {
		for _, k := range keys {
			if err := bkt.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Close() error {
	return nil
}
