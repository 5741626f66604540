package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/detector"
	"github.com/tphakala/preloadwatch/internal/errors"
)

var archivePrefix = []byte("notice/")

// ArchivedNotice is one stored notice with the context it was raised in.
type ArchivedNotice struct {
	detector.Notice
	Source string    `json:"source,omitempty"`
	Time   time.Time `json:"time"`
}

// Archive keeps delivered notices in an embedded badger store. Keys sort by
// time so the newest notices are read first.
type Archive struct {
	db  *badger.DB
	ttl time.Duration
	seq atomic.Uint64
}

// OpenArchive opens the store at s.Path, or in memory when s.InMemory is set.
func OpenArchive(s *conf.ArchiveSettings) (*Archive, error) {
	opts := badger.DefaultOptions(s.Path)
	if s.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(16 << 20).
		WithNumMemtables(2)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", s.Path).
			Context("in_memory", s.InMemory).
			Build()
	}
	return &Archive{db: db, ttl: s.TTL}, nil
}

func (a *Archive) Name() string { return "archive" }

// Notify stores every notice of r.
func (a *Archive) Notify(_ context.Context, r Report) error {
	at := r.Time
	if at.IsZero() {
		at = time.Now()
	}

	err := a.db.Update(func(txn *badger.Txn) error {
		for _, n := range r.Notices {
			val, err := json.Marshal(ArchivedNotice{Notice: n, Source: r.Source, Time: at})
			if err != nil {
				return err
			}
			key := fmt.Appendf(append([]byte(nil), archivePrefix...), "%020d/%010d", at.UnixNano(), a.seq.Add(1))
			entry := badger.NewEntry(key, val)
			if a.ttl > 0 {
				entry = entry.WithTTL(a.ttl)
			}
			if err := txn.SetEntry(entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "archive_notices").
			Build()
	}
	return nil
}

// Recent returns up to limit notices, newest first. A limit of zero or less
// returns everything.
func (a *Archive) Recent(limit int) ([]ArchivedNotice, error) {
	var out []ArchivedNotice
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = archivePrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte(nil), archivePrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(archivePrefix); it.Next() {
			var n ArchivedNotice
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return err
			}
			out = append(out, n)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "read_archive").
			Build()
	}
	return out, nil
}

// Close closes the store.
func (a *Archive) Close() error {
	return a.db.Close()
}
