// Package storetest is a backend-agnostic conformance suite for
// eventstore.Store, run against every backend (memory, badger, postgres)
// the way the teacher's pkg/metadata/storetest runs one suite against every
// metadata backend.
package storetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iscc/iscc-hub/pkg/eventstore"
)

// StoreFactory creates a fresh, empty Store for each test. Factories that
// need a filesystem path or a database connection should use t.TempDir()
// and t.Cleanup() the way the teacher's metadata StoreFactory does.
type StoreFactory func(t *testing.T) eventstore.Store

// RunConformanceSuite runs the full suite against the provided factory.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("AppendAndTail", func(t *testing.T) { testAppendAndTail(t, factory) })
	t.Run("GapfreeSequence", func(t *testing.T) { testGapfreeSequence(t, factory) })
	t.Run("DuplicateNonce", func(t *testing.T) { testDuplicateNonce(t, factory) })
	t.Run("DuplicateSeq", func(t *testing.T) { testDuplicateSeq(t, factory) })
	t.Run("Lookups", func(t *testing.T) { testLookups(t, factory) })
	t.Run("Scan", func(t *testing.T) { testScan(t, factory) })
	t.Run("Digest", func(t *testing.T) { testDigest(t, factory) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, factory) })
}

func sampleEvent(seq, tsMicros uint64, serverID uint16, nonce string) *eventstore.Event {
	isccID, _ := encodeIsccID(tsMicros, serverID)
	return &eventstore.Event{
		Seq:        seq,
		IsccID:     isccID,
		TsMicros:   tsMicros,
		ServerID:   serverID,
		NoteRaw:    []byte(`{"iscc_code":"ISCC:AAA"}`),
		Pubkey:     "deadbeef",
		Nonce:      nonce,
		Datahash:   "1e20" + nonce + nonce,
		IsccCode:   "ISCC:AAA",
		Units:      []string{"ISCC:BBB"},
		ReceivedAt: time.Unix(0, int64(tsMicros)*1000).UTC(),
	}
}

// encodeIsccID packs a body without importing pkg/codec, to keep this test
// helper free of a cyclic-looking dependency on the component under test
// elsewhere in the pipeline; it only needs a distinct-looking string per
// (ts, server) pair for uniqueness, not a wire-valid ISCC-ID.
func encodeIsccID(tsMicros uint64, serverID uint16) (string, error) {
	return "ISCC:" + itoa(tsMicros) + "-" + itoa(uint64(serverID)), nil
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func testAppendAndTail(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	tail, err := s.Tail(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tail.LastSeq)

	ev := sampleEvent(1, 1000, 1, "nonce-1")
	require.NoError(t, s.Append(ctx, ev))

	tail, err = s.Tail(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tail.LastSeq)
	assert.Equal(t, uint64(1000), tail.LastTsMicros)
}

func testGapfreeSequence(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	const n = 50
	for i := 1; i <= n; i++ {
		ev := sampleEvent(uint64(i), uint64(1000+i), 1, "nonce-"+itoa(uint64(i)))
		require.NoError(t, s.Append(ctx, ev))
	}

	events, err := s.Scan(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, events, n)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
		if i > 0 {
			assert.Less(t, events[i-1].TsMicros, ev.TsMicros)
		}
	}
}

func testDuplicateNonce(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	ev1 := sampleEvent(1, 1000, 1, "dup-nonce")
	require.NoError(t, s.Append(ctx, ev1))

	ev2 := sampleEvent(2, 1001, 1, "dup-nonce")
	err := s.Append(ctx, ev2)
	require.Error(t, err)

	storeErr, ok := err.(*eventstore.StoreError)
	require.True(t, ok, "expected *eventstore.StoreError, got %T", err)
	assert.Equal(t, eventstore.ErrDuplicateNonce, storeErr.Code)

	existing, err := s.GetByNonce(ctx, "dup-nonce")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), existing.Seq)
}

func testDuplicateSeq(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	require.NoError(t, s.Append(ctx, sampleEvent(1, 1000, 1, "a")))

	err := s.Append(ctx, sampleEvent(1, 1001, 1, "b"))
	require.Error(t, err)
	storeErr, ok := err.(*eventstore.StoreError)
	require.True(t, ok)
	assert.Equal(t, eventstore.ErrDuplicateSeq, storeErr.Code)
}

func testLookups(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	ev := sampleEvent(1, 1000, 1, "lookup-nonce")
	require.NoError(t, s.Append(ctx, ev))

	bySeq, err := s.GetBySeq(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ev.Nonce, bySeq.Nonce)

	byID, err := s.GetByIsccID(ctx, ev.IsccID)
	require.NoError(t, err)
	assert.Equal(t, ev.Seq, byID.Seq)

	byNonce, err := s.GetByNonce(ctx, ev.Nonce)
	require.NoError(t, err)
	assert.Equal(t, ev.Seq, byNonce.Seq)

	byHash, err := s.LookupByDatahash(ctx, ev.Datahash)
	require.NoError(t, err)
	require.Len(t, byHash, 1)

	byCode, err := s.LookupByIsccCode(ctx, ev.IsccCode)
	require.NoError(t, err)
	require.Len(t, byCode, 1)

	byUnit, err := s.LookupByUnit(ctx, ev.Units[0])
	require.NoError(t, err)
	require.Len(t, byUnit, 1)
}

func testScan(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	for i := 1; i <= 10; i++ {
		require.NoError(t, s.Append(ctx, sampleEvent(uint64(i), uint64(1000+i), 1, "scan-"+itoa(uint64(i)))))
	}

	events, err := s.Scan(ctx, 5, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(5), events[0].Seq)
	assert.Equal(t, uint64(7), events[2].Seq)

	events, err = s.Scan(ctx, 9, 100)
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func testDigest(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(ctx, sampleEvent(uint64(i), uint64(1000+i), 1, "digest-"+itoa(uint64(i)))))
	}

	d1, err := s.Digest(ctx, 1, 5)
	require.NoError(t, err)
	d2, err := s.Digest(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "digest must be deterministic for a fixed range")

	d3, err := s.Digest(ctx, 1, 4)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3, "digest over a different range must differ")
}

func testNotFound(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	_, err := s.GetBySeq(ctx, 999)
	require.Error(t, err)
	storeErr, ok := err.(*eventstore.StoreError)
	require.True(t, ok)
	assert.Equal(t, eventstore.ErrNotFound, storeErr.Code)

	_, err = s.GetByNonce(ctx, "missing")
	require.Error(t, err)

	_, err = s.GetByIsccID(ctx, "ISCC:MISSING")
	require.Error(t, err)
}
