package models

import "time"

// RawMessage is one envelope received from the transaction feed, exactly as
// the transport delivered it. Decoding happens downstream so the feed reader
// never stalls on a slow parse.
type RawMessage struct {
	Payload    []byte
	Source     string
	ReceivedAt time.Time
}

// SwapCandidate is a decoded, not-yet-evaluated token launch event. It is
// immutable once constructed and is discarded after the admission decision.
type SwapCandidate struct {
	// Mint is the base58 token mint address.
	Mint string

	// Name and Symbol come from the create instruction metadata.
	Name   string
	Symbol string

	// PriceSOL is the SOL committed by the launch's initial buy. This is the
	// value the admission filter gates on.
	PriceSOL float64

	// UnitPrice is the bonding-curve price in SOL per token at the moment the
	// launch was observed, or 0 when the curve state is unknown.
	UnitPrice float64

	// TipLamports is the priority fee attached to the launch transaction.
	TipLamports uint64

	Signature  string
	Slot       uint64
	ObservedAt time.Time
}
