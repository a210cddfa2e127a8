// internal/blockchain/solana/transaction/builder.go
package transaction

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/rovshanmuradov/fairlaunch/internal/wallet"
)

// Builder помогает конструировать и подписывать транзакции платформы:
// compute budget (если задан), инструкции и дополнительные одноразовые подписанты.
type Builder struct {
	instructions []solana.Instruction
	signers      []solana.PrivateKey
	unitLimit    uint32
	unitPrice    uint64
}

// NewBuilder создает новый билдер транзакций
func NewBuilder() *Builder {
	return &Builder{}
}

// WithComputeBudget добавляет SetComputeUnitLimit/SetComputeUnitPrice в начало транзакции.
func (b *Builder) WithComputeBudget(units uint32, microLamports uint64) *Builder {
	b.unitLimit = units
	b.unitPrice = microLamports
	return b
}

// Add добавляет инструкции в транзакцию
func (b *Builder) Add(ixs ...solana.Instruction) *Builder {
	b.instructions = append(b.instructions, ixs...)
	return b
}

// AddSigner добавляет ключи, которые должны подписать транзакцию помимо плательщика.
func (b *Builder) AddSigner(keys ...solana.PrivateKey) *Builder {
	b.signers = append(b.signers, keys...)
	return b
}

// Instructions возвращает итоговый список инструкций с compute budget в начале.
func (b *Builder) Instructions() []solana.Instruction {
	var out []solana.Instruction
	if b.unitLimit > 0 {
		out = append(out, computebudget.NewSetComputeUnitLimitInstruction(b.unitLimit).Build())
	}
	if b.unitPrice > 0 {
		out = append(out, computebudget.NewSetComputeUnitPriceInstruction(b.unitPrice).Build())
	}
	return append(out, b.instructions...)
}

// Build создаёт транзакцию с payer в роли плательщика и подписывает её.
func (b *Builder) Build(blockhash solana.Hash, payer *wallet.Wallet) (*solana.Transaction, error) {
	if len(b.instructions) == 0 {
		return nil, errors.New("transaction has no instructions")
	}

	tx, err := solana.NewTransaction(b.Instructions(), blockhash, solana.TransactionPayer(payer.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	if err := payer.SignTransaction(tx, b.signers...); err != nil {
		return nil, err
	}
	return tx, nil
}
