// internal/blockchain/solana/programs/metadata.go
package programs

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const metadataIxCreateMetadataAccountV3 uint8 = 33

// MetadataProgramID - программа Metaplex Token Metadata.
var MetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

// Ограничения Metaplex Token Metadata на длину полей.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

// TokenMetadata - минимальный набор on-chain метаданных fungible-токена.
type TokenMetadata struct {
	Name   string
	Symbol string
	URI    string
}

// FindMetadataAddress вычисляет PDA аккаунта метаданных для mint.
func FindMetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("metadata"), MetadataProgramID.Bytes(), mint.Bytes()},
		MetadataProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive metadata address: %w", err)
	}
	return addr, nil
}

// NewCreateMetadataAccountV3Instruction создаёт неизменяемые метаданные без creators/collection/uses.
func NewCreateMetadataAccountV3Instruction(meta TokenMetadata, mint, mintAuthority, payer solana.PublicKey) (solana.Instruction, error) {
	if len(meta.Name) > MaxNameLength {
		return nil, fmt.Errorf("metadata name longer than %d bytes", MaxNameLength)
	}
	if len(meta.Symbol) > MaxSymbolLength {
		return nil, fmt.Errorf("metadata symbol longer than %d bytes", MaxSymbolLength)
	}
	if len(meta.URI) > MaxURILength {
		return nil, fmt.Errorf("metadata uri longer than %d bytes", MaxURILength)
	}

	metadataAccount, err := FindMetadataAddress(mint)
	if err != nil {
		return nil, err
	}

	// Borsh: DataV2 { name, symbol, uri, seller_fee_basis_points, creators, collection, uses },
	// is_mutable, collection_details
	data := []byte{metadataIxCreateMetadataAccountV3}
	data = appendBorshString(data, meta.Name)
	data = appendBorshString(data, meta.Symbol)
	data = appendBorshString(data, meta.URI)
	data = binary.LittleEndian.AppendUint16(data, 0)
	data = append(data, 0, 0, 0) // creators, collection, uses: None
	data = append(data, 0)       // is_mutable = false
	data = append(data, 0)       // collection_details: None

	return solana.NewInstruction(
		MetadataProgramID,
		[]*solana.AccountMeta{
			{PublicKey: metadataAccount, IsSigner: false, IsWritable: true},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: mintAuthority, IsSigner: true, IsWritable: false},
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: mintAuthority, IsSigner: true, IsWritable: false},
			{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		},
		data,
	), nil
}

func appendBorshString(data []byte, s string) []byte {
	data = binary.LittleEndian.AppendUint32(data, uint32(len(s)))
	return append(data, s...)
}
