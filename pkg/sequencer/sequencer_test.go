package sequencer_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iscc/iscc-hub/pkg/eventstore"
	"github.com/iscc/iscc-hub/pkg/eventstore/memory"
	"github.com/iscc/iscc-hub/pkg/note"
	"github.com/iscc/iscc-hub/pkg/sequencer"
)

func sampleNote(nonce string) *note.Note {
	raw, _ := json.Marshal(map[string]string{"nonce": nonce})
	return &note.Note{
		IsccCode: "ISCC:AAA",
		Datahash: "1e20" + nonce + nonce,
		Nonce:    nonce,
		Signature: note.Signature{
			Pubkey: "deadbeef",
		},
		Raw: raw,
	}
}

func newSequencer(t *testing.T) (*sequencer.Sequencer, eventstore.Store) {
	t.Helper()
	store := memory.New()
	seq := sequencer.New(store, sequencer.Config{ServerID: 1})
	seq.Start()
	t.Cleanup(func() { seq.Stop(time.Second) })
	return seq, store
}

func TestSubmit_MintsGaplessSequence(t *testing.T) {
	seq, _ := newSequencer(t)
	ctx := t.Context()

	for i := 1; i <= 20; i++ {
		ev, err := seq.Submit(ctx, sampleNote(fmt.Sprintf("nonce-%d", i)))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), ev.Seq)
	}
}

func TestSubmit_StrictlyIncreasingTimestamps(t *testing.T) {
	tick := int64(0)
	store := memory.New()
	seq := sequencer.New(store, sequencer.Config{
		ServerID: 1,
		Now: func() time.Time {
			// Same wall-clock reading every call, simulating a stalled
			// clock; ts_µs must still advance by 1 per commit.
			return time.UnixMicro(tick)
		},
	})
	seq.Start()
	t.Cleanup(func() { seq.Stop(time.Second) })
	ctx := t.Context()

	var last uint64
	for i := 1; i <= 10; i++ {
		ev, err := seq.Submit(ctx, sampleNote(fmt.Sprintf("nonce-%d", i)))
		require.NoError(t, err)
		assert.Greater(t, ev.TsMicros, last)
		last = ev.TsMicros
	}
}

func TestSubmit_DuplicateNonceReturnsExisting(t *testing.T) {
	seq, _ := newSequencer(t)
	ctx := t.Context()

	first, err := seq.Submit(ctx, sampleNote("dup-nonce"))
	require.NoError(t, err)

	_, err = seq.Submit(ctx, sampleNote("dup-nonce"))
	require.Error(t, err)

	dupErr, ok := err.(*sequencer.DuplicateNonceError)
	require.True(t, ok, "expected *DuplicateNonceError, got %T", err)
	assert.Equal(t, first.Seq, dupErr.Existing.Seq)
}

func TestSubmit_ConcurrentBurstAllUnique(t *testing.T) {
	seq, store := newSequencer(t)
	ctx := t.Context()

	const n = 200
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := seq.Submit(ctx, sampleNote(fmt.Sprintf("burst-%d", i)))
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	tail, err := store.Tail(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(n), tail.LastSeq)

	events, err := store.Scan(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, events, n)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
		if i > 0 {
			assert.Less(t, events[i-1].TsMicros, ev.TsMicros)
		}
	}
}
