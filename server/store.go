package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	torrentsBucket = "torrents"
	entriesBucket  = "entries"
)

var (
	// ErrNotFound is returned when no descriptor is stored under a key
	ErrNotFound = errors.New("descriptor not found")
)

// Entry describes a stored descriptor.
type Entry struct {
	Key      string    `json:"key"`
	InfoHash string    `json:"infoHash"`
	Name     string    `json:"name"`
	Length   int64     `json:"length"`
	Size     int       `json:"size"`
	AddedAt  time.Time `json:"addedAt"`
}

// Store keeps descriptors in a bbolt database.
type Store struct {
	db *bbolt.DB
}

func OpenStore(dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range []string{torrentsBucket, entriesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.db.Path()
}

// Put stores data under e.Key, replacing any previous descriptor.
func (s *Store) Put(e Entry, data []byte) error {
	e.Size = len(data)
	meta, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(torrentsBucket)).Put([]byte(e.Key), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(entriesBucket)).Put([]byte(e.Key), meta)
	})
}

func (s *Store) Get(key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(torrentsBucket)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// bbolt memory is only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// List returns every entry, newest first.
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(entriesBucket)).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal entry %s: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AddedAt.After(entries[j].AddedAt)
	})
	return entries, nil
}

func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(torrentsBucket))
		if b.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		if err := b.Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket([]byte(entriesBucket)).Delete([]byte(key))
	})
}

// Count is the number of stored descriptors.
func (s *Store) Count() (n int) {
	s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(torrentsBucket)).Stats().KeyN
		return nil
	})
	return
}
