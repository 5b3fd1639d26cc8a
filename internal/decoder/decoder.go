package decoder

import (
	"bytes"
	"encoding/binary"

	jsoniter "github.com/json-iterator/go"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"solana-launch-sniper/internal/curve"
	"solana-launch-sniper/internal/models"
)

// PumpProgramID is the pump.fun bonding-curve program.
const PumpProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

const computeBudgetProgramID = "ComputeBudget111111111111111111111111111111"

// Anchor instruction discriminators for the pump.fun program.
var (
	createDiscriminator = []byte{0x18, 0x1e, 0xc8, 0x28, 0x05, 0x1c, 0x07, 0x77}
	buyDiscriminator    = []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
)

// Compute-budget instruction tags.
const (
	computeUnitLimitTag = 0x02
	computeUnitPriceTag = 0x03
)

const defaultComputeUnitLimit = 200_000

// RejectReason classifies why a feed message produced no candidate.
type RejectReason string

const (
	// RejectNone accompanies a successful decode.
	RejectNone RejectReason = ""
	// RejectNotRelevant marks messages that do not carry a pump.fun launch.
	RejectNotRelevant RejectReason = "not_relevant"
	// RejectMalformed marks truncated or undecodable payloads.
	RejectMalformed RejectReason = "malformed"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type rawInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
}

type envelope struct {
	Params struct {
		Result struct {
			Slot        uint64 `json:"slot"`
			Signature   string `json:"signature"`
			Transaction struct {
				Message struct {
					AccountKeys  []string         `json:"accountKeys"`
					Instructions []rawInstruction `json:"instructions"`
				} `json:"message"`
			} `json:"transaction"`
		} `json:"result"`
	} `json:"params"`
}

// Decoder turns raw feed envelopes into SwapCandidates. It has no state of
// its own; the curve book is its only collaborator and carries the reserve
// tracking needed to derive unit prices.
type Decoder struct {
	book           *curve.Book
	logger         *logrus.Logger
	programLiteral []byte
}

func New(book *curve.Book, logger *logrus.Logger) *Decoder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Decoder{
		book:           book,
		logger:         logger,
		programLiteral: []byte(PumpProgramID),
	}
}

// Decode parses one raw feed message. It returns a candidate only for a
// launch transaction carrying both the create instruction and the creator's
// initial buy. Everything else is rejected: irrelevant messages cheaply
// before any JSON parsing, malformed ones as soon as a relevant field fails
// to parse. Buys on already-tracked mints update the curve book and are
// otherwise not candidates.
func (d *Decoder) Decode(raw models.RawMessage) (*models.SwapCandidate, RejectReason) {
	// Cheap byte scan gates the full parse: messages that never mention the
	// pump program cannot be relevant.
	if !bytes.Contains(raw.Payload, d.programLiteral) {
		return nil, RejectNotRelevant
	}

	var env envelope
	if err := json.Unmarshal(raw.Payload, &env); err != nil {
		return nil, RejectMalformed
	}

	msg := env.Params.Result.Transaction.Message
	if env.Params.Result.Signature == "" || len(msg.AccountKeys) < 2 {
		return nil, RejectMalformed
	}

	// pump.fun creation transactions place the mint at account index 1.
	mint := msg.AccountKeys[1]

	var (
		hasCreate bool
		hasBuy    bool
		name      string
		symbol    string
		buyTokens uint64
		buySol    uint64

		cuPriceMicro uint64
		cuLimit      uint64 = defaultComputeUnitLimit
	)

	for _, ix := range msg.Instructions {
		if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(msg.AccountKeys) {
			return nil, RejectMalformed
		}
		program := msg.AccountKeys[ix.ProgramIDIndex]

		switch program {
		case computeBudgetProgramID:
			data, err := base58.Decode(ix.Data)
			if err != nil || len(data) == 0 {
				continue
			}
			switch data[0] {
			case computeUnitPriceTag:
				if len(data) >= 9 {
					cuPriceMicro = binary.LittleEndian.Uint64(data[1:9])
				}
			case computeUnitLimitTag:
				if len(data) >= 5 {
					cuLimit = uint64(binary.LittleEndian.Uint32(data[1:5]))
				}
			}

		case PumpProgramID:
			data, err := base58.Decode(ix.Data)
			if err != nil || len(data) < 8 {
				return nil, RejectMalformed
			}
			switch {
			case bytes.Equal(data[:8], createDiscriminator):
				n, s, ok := parseCreateArgs(data[8:])
				if !ok {
					return nil, RejectMalformed
				}
				hasCreate, name, symbol = true, n, s
			case bytes.Equal(data[:8], buyDiscriminator):
				if len(data) < 24 {
					return nil, RejectMalformed
				}
				hasBuy = true
				buyTokens = binary.LittleEndian.Uint64(data[8:16])
				buySol = binary.LittleEndian.Uint64(data[16:24])
			}
		}
	}

	if hasCreate {
		d.book.Track(mint)
	}

	// Snapshot the curve price before folding the observed buy in: the
	// candidate's unit price is the price the sniper can still get.
	unitPrice := d.book.UnitPrice(mint)

	if hasBuy {
		d.book.ApplyBuy(mint, buyTokens, buySol)
	}

	if !hasCreate || !hasBuy {
		return nil, RejectNotRelevant
	}

	return &models.SwapCandidate{
		Mint:        mint,
		Name:        name,
		Symbol:      symbol,
		PriceSOL:    float64(buySol) / 1e9,
		UnitPrice:   unitPrice,
		TipLamports: cuPriceMicro * cuLimit / 1_000_000,
		Signature:   env.Params.Result.Signature,
		Slot:        env.Params.Result.Slot,
		ObservedAt:  raw.ReceivedAt,
	}, RejectNone
}

// parseCreateArgs reads the borsh-encoded create metadata: three
// length-prefixed strings (name, symbol, uri) followed by the creator key.
func parseCreateArgs(data []byte) (name, symbol string, ok bool) {
	name, off, ok := readString(data, 0)
	if !ok {
		return "", "", false
	}
	symbol, off, ok = readString(data, off)
	if !ok {
		return "", "", false
	}
	_, off, ok = readString(data, off) // uri
	if !ok {
		return "", "", false
	}
	if off+32 > len(data) {
		return "", "", false
	}
	return name, symbol, true
}

func readString(data []byte, off int) (string, int, bool) {
	if off+4 > len(data) {
		return "", 0, false
	}
	n := int(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	if n < 0 || off+n > len(data) {
		return "", 0, false
	}
	return string(data[off : off+n]), off + n, true
}
