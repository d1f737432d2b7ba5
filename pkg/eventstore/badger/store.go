package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/iscc/iscc-hub/pkg/eventstore"
)

// Store is the embedded BadgerDB eventstore.Store backend. It keeps
// SyncWrites enabled so Append only returns once the write is fsynced,
// satisfying spec.md §4.4's durability contract.
type Store struct {
	db *badgerdb.DB
}

// Config configures the BadgerDB backend.
type Config struct {
	// Path is the directory BadgerDB uses for its log/value files.
	Path string `mapstructure:"path"`
}

// Open opens (creating if necessary) a BadgerDB database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("eventstore/badger: path is required")
	}

	opts := badgerdb.DefaultOptions(cfg.Path).WithSyncWrites(true).WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("eventstore/badger: open %q: %w", cfg.Path, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Healthcheck verifies the database can still serve a read transaction.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badgerdb.Txn) error { return nil })
}

func (s *Store) Append(ctx context.Context, ev *eventstore.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyNonce(ev.Nonce)); err == nil {
			return &eventstore.StoreError{Code: eventstore.ErrDuplicateNonce, Message: "nonce already admitted: " + ev.Nonce}
		} else if err != badgerdb.ErrKeyNotFound {
			return fmt.Errorf("check nonce: %w", err)
		}

		if _, err := txn.Get(keyEvent(ev.Seq)); err == nil {
			return &eventstore.StoreError{Code: eventstore.ErrDuplicateSeq, Message: "seq already committed"}
		} else if err != badgerdb.ErrKeyNotFound {
			return fmt.Errorf("check seq: %w", err)
		}

		if _, err := txn.Get(keyIsccID(ev.IsccID)); err == nil {
			return &eventstore.StoreError{Code: eventstore.ErrDuplicateIsccID, Message: "iscc_id already committed"}
		} else if err != badgerdb.ErrKeyNotFound {
			return fmt.Errorf("check iscc_id: %w", err)
		}

		encoded, err := encodeEvent(ev)
		if err != nil {
			return err
		}
		if err := txn.Set(keyEvent(ev.Seq), encoded); err != nil {
			return err
		}
		if err := txn.Set(keyIsccID(ev.IsccID), encodeSeq(ev.Seq)); err != nil {
			return err
		}
		if err := txn.Set(keyNonce(ev.Nonce), encodeSeq(ev.Seq)); err != nil {
			return err
		}
		if err := txn.Set(keyDatahash(ev.Datahash, ev.Seq), encodeSeq(ev.Seq)); err != nil {
			return err
		}
		if err := txn.Set(keyIsccCode(ev.IsccCode, ev.Seq), encodeSeq(ev.Seq)); err != nil {
			return err
		}
		for _, u := range ev.Units {
			if err := txn.Set(keyUnit(u, ev.Seq), encodeSeq(ev.Seq)); err != nil {
				return err
			}
		}

		tail := eventstore.Tail{LastSeq: ev.Seq, LastTsMicros: ev.TsMicros}
		tailBytes, err := encodeTail(tail)
		if err != nil {
			return err
		}
		return txn.Set(keyTail(), tailBytes)
	})
}

func (s *Store) Tail(ctx context.Context) (eventstore.Tail, error) {
	if err := ctx.Err(); err != nil {
		return eventstore.Tail{}, err
	}

	var tail eventstore.Tail
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyTail())
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			t, err := decodeTail(val)
			if err != nil {
				return err
			}
			tail = t
			return nil
		})
	})
	if err != nil {
		return eventstore.Tail{}, &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
	}
	return tail, nil
}

func (s *Store) GetBySeq(ctx context.Context, seq uint64) (*eventstore.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ev *eventstore.Event
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyEvent(seq))
		if err == badgerdb.ErrKeyNotFound {
			return &eventstore.StoreError{Code: eventstore.ErrNotFound, Message: "no event at that seq"}
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			e, err := decodeEvent(val)
			if err != nil {
				return err
			}
			ev = e
			return nil
		})
	})
	return ev, err
}

func (s *Store) GetByIsccID(ctx context.Context, isccID string) (*eventstore.Event, error) {
	seq, err := s.resolveSeq(ctx, keyIsccID(isccID), "no event with that iscc_id")
	if err != nil {
		return nil, err
	}
	return s.GetBySeq(ctx, seq)
}

func (s *Store) GetByNonce(ctx context.Context, nonce string) (*eventstore.Event, error) {
	seq, err := s.resolveSeq(ctx, keyNonce(nonce), "no event with that nonce")
	if err != nil {
		return nil, err
	}
	return s.GetBySeq(ctx, seq)
}

func (s *Store) resolveSeq(ctx context.Context, key []byte, notFoundMsg string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var seq uint64
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return &eventstore.StoreError{Code: eventstore.ErrNotFound, Message: notFoundMsg}
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			seq = decodeSeq(val)
			return nil
		})
	})
	return seq, err
}

func (s *Store) Scan(ctx context.Context, seqFrom uint64, limit int) ([]*eventstore.Event, error) {
	if limit < 0 {
		return nil, &eventstore.StoreError{Code: eventstore.ErrInvalidArgument, Message: "limit must be non-negative"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []*eventstore.Event
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = keyEventPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(keyEvent(seqFrom)); it.ValidForPrefix(keyEventPrefix()); it.Next() {
			if limit > 0 && len(events) >= limit {
				break
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				ev, err := decodeEvent(val)
				if err != nil {
					return err
				}
				events = append(events, ev)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
	}
	return events, nil
}

func (s *Store) LookupByDatahash(ctx context.Context, datahash string) ([]*eventstore.Event, error) {
	return s.lookupByPrefix(ctx, keyDatahashPrefix(datahash))
}

func (s *Store) LookupByIsccCode(ctx context.Context, isccCode string) ([]*eventstore.Event, error) {
	return s.lookupByPrefix(ctx, keyIsccCodePrefix(isccCode))
}

func (s *Store) LookupByUnit(ctx context.Context, unit string) ([]*eventstore.Event, error) {
	return s.lookupByPrefix(ctx, keyUnitPrefix(unit))
}

func (s *Store) lookupByPrefix(ctx context.Context, prefix []byte) ([]*eventstore.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var seqs []uint64
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				seqs = append(seqs, decodeSeq(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
	}

	events := make([]*eventstore.Event, 0, len(seqs))
	for _, seq := range seqs {
		ev, err := s.GetBySeq(ctx, seq)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *Store) Digest(ctx context.Context, from, to uint64) ([32]byte, error) {
	events, err := s.Scan(ctx, from, 0)
	if err != nil {
		return [32]byte{}, err
	}
	inRange := events[:0]
	for _, ev := range events {
		if ev.Seq <= to {
			inRange = append(inRange, ev)
		}
	}
	return eventstore.RollingDigest(inRange)
}

var _ eventstore.Store = (*Store)(nil)
