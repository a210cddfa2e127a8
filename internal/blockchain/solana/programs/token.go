// internal/blockchain/solana/programs/token.go
package programs

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Размеры аккаунтов SPL Token.
const (
	MintAccountSize  uint64 = 82
	TokenAccountSize uint64 = 165
)

// Индексы инструкций SPL Token, которые собираются вручную.
const (
	tokenIxInitializeAccount uint8 = 1
	tokenIxSetAuthority      uint8 = 6
	tokenIxMintTo            uint8 = 7
	tokenIxInitializeMint2   uint8 = 20
)

// AuthorityType - тип полномочия для SetAuthority.
type AuthorityType uint8

const (
	AuthorityMintTokens    AuthorityType = 0
	AuthorityFreezeAccount AuthorityType = 1
)

// NewInitializeMint2Instruction инициализирует mint без sysvar rent.
// freezeAuthority == nil означает отсутствие freeze-полномочия.
func NewInitializeMint2Instruction(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) solana.Instruction {
	data := []byte{tokenIxInitializeMint2, decimals}
	data = append(data, mintAuthority.Bytes()...)
	data = appendOptionalKey(data, freezeAuthority)

	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: mint, IsSigner: false, IsWritable: true},
		},
		data,
	)
}

// NewInitializeAccountInstruction инициализирует токен-аккаунт (вариант с sysvar rent).
func NewInitializeAccountInstruction(account, mint, owner solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: account, IsSigner: false, IsWritable: true},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: owner, IsSigner: false, IsWritable: false},
			{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		},
		[]byte{tokenIxInitializeAccount},
	)
}

// NewMintToInstruction выпускает amount токенов на destination.
func NewMintToInstruction(mint, destination, authority solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = tokenIxMintTo
	binary.LittleEndian.PutUint64(data[1:], amount)

	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: mint, IsSigner: false, IsWritable: true},
			{PublicKey: destination, IsSigner: false, IsWritable: true},
			{PublicKey: authority, IsSigner: true, IsWritable: false},
		},
		data,
	)
}

// NewSetAuthorityInstruction меняет полномочие target. newAuthority == nil снимает полномочие навсегда.
func NewSetAuthorityInstruction(target, currentAuthority solana.PublicKey, authorityType AuthorityType, newAuthority *solana.PublicKey) solana.Instruction {
	data := []byte{tokenIxSetAuthority, uint8(authorityType)}
	data = appendOptionalKey(data, newAuthority)

	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: target, IsSigner: false, IsWritable: true},
			{PublicKey: currentAuthority, IsSigner: true, IsWritable: false},
		},
		data,
	)
}

// appendOptionalKey кодирует COption<Pubkey> в формате SPL Token (1 байт тега + 32 байта ключа).
func appendOptionalKey(data []byte, key *solana.PublicKey) []byte {
	if key == nil {
		return append(data, 0)
	}
	data = append(data, 1)
	return append(data, key.Bytes()...)
}
