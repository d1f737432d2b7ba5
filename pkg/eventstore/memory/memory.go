// Package memory is an in-process, map-backed eventstore.Store used by
// tests and the storetest conformance suite, mirroring the teacher's
// pkg/metadata/store/memory "never durable, always available" backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/iscc/iscc-hub/pkg/eventstore"
)

// Store is a non-durable, in-memory eventstore.Store. It is safe for
// concurrent use but offers no crash safety: a process restart loses the
// log. Production deployments use the badger or postgres backend.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*eventstore.Event
	bySeq  map[uint64]*eventstore.Event
	tail   eventstore.Tail
	nonce  map[string]*eventstore.Event
	byHash map[string][]*eventstore.Event
	byCode map[string][]*eventstore.Event
	byUnit map[string][]*eventstore.Event
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:   make(map[string]*eventstore.Event),
		bySeq:  make(map[uint64]*eventstore.Event),
		nonce:  make(map[string]*eventstore.Event),
		byHash: make(map[string][]*eventstore.Event),
		byCode: make(map[string][]*eventstore.Event),
		byUnit: make(map[string][]*eventstore.Event),
	}
}

func (s *Store) Append(_ context.Context, ev *eventstore.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nonce[ev.Nonce]; ok {
		return &eventstore.StoreError{Code: eventstore.ErrDuplicateNonce, Message: "nonce already admitted: " + existing.Nonce}
	}
	if _, ok := s.bySeq[ev.Seq]; ok {
		return &eventstore.StoreError{Code: eventstore.ErrDuplicateSeq, Message: "seq already committed"}
	}
	if _, ok := s.byID[ev.IsccID]; ok {
		return &eventstore.StoreError{Code: eventstore.ErrDuplicateIsccID, Message: "iscc_id already committed"}
	}

	cp := *ev
	s.bySeq[ev.Seq] = &cp
	s.byID[ev.IsccID] = &cp
	s.nonce[ev.Nonce] = &cp
	s.byHash[ev.Datahash] = append(s.byHash[ev.Datahash], &cp)
	s.byCode[ev.IsccCode] = append(s.byCode[ev.IsccCode], &cp)
	for _, u := range ev.Units {
		s.byUnit[u] = append(s.byUnit[u], &cp)
	}

	if ev.Seq > s.tail.LastSeq {
		s.tail.LastSeq = ev.Seq
	}
	if ev.TsMicros > s.tail.LastTsMicros {
		s.tail.LastTsMicros = ev.TsMicros
	}
	return nil
}

func (s *Store) Tail(_ context.Context) (eventstore.Tail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tail, nil
}

func (s *Store) GetBySeq(_ context.Context, seq uint64) (*eventstore.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.bySeq[seq]
	if !ok {
		return nil, &eventstore.StoreError{Code: eventstore.ErrNotFound, Message: "no event at that seq"}
	}
	cp := *ev
	return &cp, nil
}

func (s *Store) GetByIsccID(_ context.Context, isccID string) (*eventstore.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.byID[isccID]
	if !ok {
		return nil, &eventstore.StoreError{Code: eventstore.ErrNotFound, Message: "no event with that iscc_id"}
	}
	cp := *ev
	return &cp, nil
}

func (s *Store) GetByNonce(_ context.Context, nonce string) (*eventstore.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.nonce[nonce]
	if !ok {
		return nil, &eventstore.StoreError{Code: eventstore.ErrNotFound, Message: "no event with that nonce"}
	}
	cp := *ev
	return &cp, nil
}

func (s *Store) Scan(_ context.Context, seqFrom uint64, limit int) ([]*eventstore.Event, error) {
	if limit < 0 {
		return nil, &eventstore.StoreError{Code: eventstore.ErrInvalidArgument, Message: "limit must be non-negative"}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seqs := make([]uint64, 0, len(s.bySeq))
	for seq := range s.bySeq {
		if seq >= seqFrom {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	if limit > 0 && len(seqs) > limit {
		seqs = seqs[:limit]
	}

	out := make([]*eventstore.Event, 0, len(seqs))
	for _, seq := range seqs {
		cp := *s.bySeq[seq]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) LookupByDatahash(_ context.Context, datahash string) ([]*eventstore.Event, error) {
	return s.lookup(s.byHash, datahash), nil
}

func (s *Store) LookupByIsccCode(_ context.Context, isccCode string) ([]*eventstore.Event, error) {
	return s.lookup(s.byCode, isccCode), nil
}

func (s *Store) LookupByUnit(_ context.Context, unit string) ([]*eventstore.Event, error) {
	return s.lookup(s.byUnit, unit), nil
}

func (s *Store) lookup(index map[string][]*eventstore.Event, key string) []*eventstore.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := index[key]
	out := make([]*eventstore.Event, len(matches))
	for i, m := range matches {
		cp := *m
		out[i] = &cp
	}
	return out
}

func (s *Store) Digest(_ context.Context, from, to uint64) ([32]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seqs := make([]uint64, 0)
	for seq := range s.bySeq {
		if seq >= from && seq <= to {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	events := make([]*eventstore.Event, len(seqs))
	for i, seq := range seqs {
		events[i] = s.bySeq[seq]
	}
	return eventstore.RollingDigest(events)
}

func (s *Store) Close() error { return nil }

var _ eventstore.Store = (*Store)(nil)
