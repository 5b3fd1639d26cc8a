package stream

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-launch-sniper/internal/curve"
	"solana-launch-sniper/internal/decoder"
	"solana-launch-sniper/internal/engine"
	"solana-launch-sniper/internal/filter"
	"solana-launch-sniper/internal/ledger"
	"solana-launch-sniper/internal/models"
)

const (
	mintA = "8Jh1vPkmRArqkkXEyLNtFcF1AVKLHkSyk5Z1PPkVtRCk"
	mintB = "9yQ4nYkoYjWdn4uDrw7yFvoq7rvH4exA4TFCBPTFSkqE"
	payer = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
)

// stubFeed serves scripted message batches, one batch per connection. A read
// past the end of a batch fails to force a reconnect; once all batches are
// spent reads block until the context ends.
type stubFeed struct {
	mu       sync.Mutex
	batches  [][][]byte
	current  [][]byte
	connects int
}

func (f *stubFeed) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.batches) > 0 {
		f.current = f.batches[0]
		f.batches = f.batches[1:]
	} else {
		f.current = nil
	}
	return nil
}

func (f *stubFeed) Read(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	if len(f.current) > 0 {
		msg := f.current[0]
		f.current = f.current[1:]
		f.mu.Unlock()
		return msg, nil
	}
	more := len(f.batches) > 0
	f.mu.Unlock()

	if more {
		return nil, fmt.Errorf("connection reset")
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *stubFeed) Close() error { return nil }

func (f *stubFeed) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func borsh(s string) []byte {
	out := make([]byte, 4+len(s))
	binary.LittleEndian.PutUint32(out, uint32(len(s)))
	copy(out[4:], s)
	return out
}

// launchEnvelope builds a feed message carrying a create plus the creator's
// initial buy of buySolLamports.
func launchEnvelope(mint, sig string, buySolLamports uint64) []byte {
	create := []byte{0x18, 0x1e, 0xc8, 0x28, 0x05, 0x1c, 0x07, 0x77}
	create = append(create, borsh("Token")...)
	create = append(create, borsh("TKN")...)
	create = append(create, borsh("uri")...)
	create = append(create, make([]byte, 32)...)

	buy := []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	buy = binary.LittleEndian.AppendUint64(buy, 1_000_000_000_000)
	buy = binary.LittleEndian.AppendUint64(buy, buySolLamports)

	return []byte(fmt.Sprintf(
		`{"params":{"result":{"slot":10,"signature":%q,"transaction":{"message":{"accountKeys":[%q,%q,%q],"instructions":[{"programIdIndex":2,"accounts":[0,1],"data":%q},{"programIdIndex":2,"accounts":[0,1],"data":%q}]}}}}}`,
		sig, payer, mint, decoder.PumpProgramID,
		base58.Encode(create), base58.Encode(buy)))
}

type countingOpener struct {
	mu     sync.Mutex
	opened []*models.Position
}

func (o *countingOpener) Open(pos *models.Position) bool {
	o.mu.Lock()
	o.opened = append(o.opened, pos)
	o.mu.Unlock()
	return true
}

func (o *countingOpener) mints() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.opened))
	for i, p := range o.opened {
		out[i] = p.Mint
	}
	return out
}

func TestDriver_EndToEnd(t *testing.T) {
	feed := &stubFeed{
		batches: [][][]byte{
			{
				launchEnvelope(mintA, "sig-1", 1_000_000_000), // 1 SOL, in range
				launchEnvelope(mintB, "sig-2", 5_000_000_000), // 5 SOL, above max
				[]byte(`{"method":"ping"}`),                   // irrelevant
			},
			{
				launchEnvelope(mintA, "sig-1", 1_000_000_000), // replayed after reconnect
			},
		},
	}

	led := ledger.NewMemory(time.Minute)
	opener := &countingOpener{}
	book := curve.NewBook()

	d := NewDriver(DriverConfig{
		Feed:      feed,
		Decoder:   decoder.New(book, nil),
		Bounds:    filter.New(0.5, 3.0, 1<<40, nil),
		Engine:    engine.New(led, opener, 100_000_000, nil),
		Workers:   2,
		QueueSize: 16,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		s := d.Stats()
		return s.Opened == 1 && s.Filtered == 1 && s.Duplicates == 1 && s.NotRelevant == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []string{mintA}, opener.mints())
	assert.GreaterOrEqual(t, feed.connectCount(), 2)

	s := d.Stats()
	assert.Equal(t, uint64(4), s.Received)
	assert.Zero(t, s.Malformed)
	assert.Zero(t, s.Errors)
}

func TestDriver_EveryMessageAccounted(t *testing.T) {
	msgs := make([][]byte, 8)
	for i := range msgs {
		msgs[i] = []byte(`{"method":"ping"}`)
	}
	feed := &stubFeed{batches: [][][]byte{msgs}}

	led := ledger.NewMemory(time.Minute)
	d := NewDriver(DriverConfig{
		Feed:      feed,
		Decoder:   decoder.New(curve.NewBook(), nil),
		Bounds:    filter.New(0, 100, 1<<40, nil),
		Engine:    engine.New(led, &countingOpener{}, 1, nil),
		Workers:   1,
		QueueSize: 2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		s := d.Stats()
		return s.Received == 8
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	s := d.Stats()
	assert.Equal(t, uint64(8), s.NotRelevant+s.Dropped)
}
