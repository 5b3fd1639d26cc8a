package pump

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// curveAccounts bundles the addresses every trade instruction needs.
type curveAccounts struct {
	mint           solana.PublicKey
	bondingCurve   solana.PublicKey
	curveTokenAcct solana.PublicKey
	ownerTokenAcct solana.PublicKey
}

func deriveCurveAccounts(owner, mint solana.PublicKey) (*curveAccounts, error) {
	bondingCurve, err := BondingCurveAddress(mint)
	if err != nil {
		return nil, err
	}
	curveTokenAcct, _, err := solana.FindAssociatedTokenAddress(bondingCurve, mint)
	if err != nil {
		return nil, fmt.Errorf("derive curve token account: %w", err)
	}
	ownerTokenAcct, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive owner token account: %w", err)
	}
	return &curveAccounts{
		mint:           mint,
		bondingCurve:   bondingCurve,
		curveTokenAcct: curveTokenAcct,
		ownerTokenAcct: ownerTokenAcct,
	}, nil
}

// BuildBuy assembles the full instruction list for a buy: compute budget,
// token account creation, then the proxied buy. tokenAmount is the amount of
// tokens expected, maxSolCost caps the lamports spent.
func BuildBuy(owner, mint solana.PublicKey, tokenAmount, maxSolCost uint64) ([]solana.Instruction, error) {
	acc, err := deriveCurveAccounts(owner, mint)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 24)
	data = append(data, buySelector...)
	data = binary.LittleEndian.AppendUint64(data, tokenAmount)
	data = binary.LittleEndian.AppendUint64(data, maxSolCost)

	buyIx := solana.NewInstruction(ProxyProgramID, solana.AccountMetaSlice{
		solana.Meta(GlobalAccount),
		solana.Meta(FeeRecipient).WRITE(),
		solana.Meta(mint),
		solana.Meta(acc.bondingCurve).WRITE(),
		solana.Meta(acc.curveTokenAcct).WRITE(),
		solana.Meta(acc.ownerTokenAcct).WRITE(),
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SysVarRentPubkey),
		solana.Meta(EventAuthority),
		solana.Meta(ProgramID),
	}, data)

	return []solana.Instruction{
		computeUnitPriceIx(computeUnitPrice),
		computeUnitLimitIx(computeUnitLimit),
		createTokenAccountIx(owner, acc),
		buyIx,
	}, nil
}

// BuildSell assembles the instruction list for a sell. tokenAmount is the
// amount sold, minSolReceive floors the lamports received.
func BuildSell(owner, mint solana.PublicKey, tokenAmount, minSolReceive uint64) ([]solana.Instruction, error) {
	acc, err := deriveCurveAccounts(owner, mint)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 24)
	data = append(data, sellSelector...)
	data = binary.LittleEndian.AppendUint64(data, tokenAmount)
	data = binary.LittleEndian.AppendUint64(data, minSolReceive)

	sellIx := solana.NewInstruction(ProxyProgramID, solana.AccountMetaSlice{
		solana.Meta(GlobalAccount),
		solana.Meta(FeeRecipient).WRITE(),
		solana.Meta(mint),
		solana.Meta(acc.bondingCurve).WRITE(),
		solana.Meta(acc.curveTokenAcct).WRITE(),
		solana.Meta(acc.ownerTokenAcct).WRITE(),
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SPLAssociatedTokenAccountProgramID),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(EventAuthority),
		solana.Meta(ProgramID),
	}, data)

	return []solana.Instruction{
		computeUnitPriceIx(computeUnitPrice),
		computeUnitLimitIx(computeUnitLimit),
		sellIx,
	}, nil
}

// createTokenAccountIx makes the proxied create-ATA instruction so the buy
// lands in an account that exists. Idempotent on the proxy side.
func createTokenAccountIx(owner solana.PublicKey, acc *curveAccounts) solana.Instruction {
	data := make([]byte, 0, 9)
	data = append(data, createATASelector...)
	data = append(data, 0)

	return solana.NewInstruction(ProxyProgramID, solana.AccountMetaSlice{
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(acc.ownerTokenAcct).WRITE(),
		solana.Meta(acc.mint),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SPLAssociatedTokenAccountProgramID),
	}, data)
}

func computeUnitPriceIx(microLamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = 0x03
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

func computeUnitLimitIx(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 0x02
	binary.LittleEndian.PutUint32(data[1:], units)
	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}
