// internal/blockchain/solana/programs/system.go
package programs

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

const systemIxCreateAccountWithSeed uint32 = 3

// NewCreateAccountWithSeedInstruction создаёт аккаунт по адресу CreateWithSeed(base, seed, owner).
// base совпадает с плательщиком, поэтому отдельный base-аккаунт в список не добавляется.
func NewCreateAccountWithSeedInstruction(payer, newAccount solana.PublicKey, seed string, lamports, space uint64, owner solana.PublicKey) solana.Instruction {
	data := make([]byte, 0, 4+32+8+len(seed)+8+8+32)
	data = binary.LittleEndian.AppendUint32(data, systemIxCreateAccountWithSeed)
	data = append(data, payer.Bytes()...)
	// bincode String: u64 длина + байты
	data = binary.LittleEndian.AppendUint64(data, uint64(len(seed)))
	data = append(data, seed...)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	data = binary.LittleEndian.AppendUint64(data, space)
	data = append(data, owner.Bytes()...)

	return solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: newAccount, IsSigner: false, IsWritable: true},
		},
		data,
	)
}
