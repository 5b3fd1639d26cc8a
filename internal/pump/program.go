package pump

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Pump protocol accounts. Buys and sells go through the proxy program, which
// forwards to the pump.fun bonding-curve program.
var (
	ProgramID      = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	ProxyProgramID = solana.MustPublicKeyFromBase58("AmXoSVCLjsfKrwCUqvkMFXYcDzZ4FeoMYs7SAhGyfMGy")
	GlobalAccount  = solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	FeeRecipient   = solana.MustPublicKeyFromBase58("62qc2CNXwrYqQScmEdiZFFAnJR262PxWEuNQtxfafNgV")
	EventAuthority = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")

	computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
)

// Proxy program instruction selectors.
var (
	buySelector       = []byte{82, 225, 119, 231, 78, 29, 45, 70}
	sellSelector      = []byte{83, 225, 119, 231, 78, 29, 45, 70}
	createATASelector = []byte{22, 51, 53, 97, 247, 184, 54, 78}
)

const bondingCurveSeed = "bonding-curve"

// Both set to 200k: the priority price buys scheduling, the limit keeps the
// proxy call from running out of compute.
const (
	computeUnitPrice uint64 = 200_000
	computeUnitLimit uint32 = 200_000
)

// BondingCurveAddress derives the curve PDA for a mint.
func BondingCurveAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(bondingCurveSeed), mint.Bytes()},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive bonding curve: %w", err)
	}
	return addr, nil
}
