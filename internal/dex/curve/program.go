// ==============================================
// File: internal/dex/curve/program.go
// ==============================================
// Package curve собирает инструкции программы bonding curve платформы:
// initialize, add_liquidity, swap и remove_liquidity.
package curve

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID - адрес развернутой программы кривой.
var DefaultProgramID = solana.MustPublicKeyFromBase58("6fDcuCmcBiJepAQkboGpVC4icLbeSMX88UMTwNDLGM5z")

// Seeds программы. "LiqudityProvider" пишется именно так в развернутом контракте.
const (
	CurveConfigSeed       = "CurveConfiguration"
	GlobalSeed            = "global"
	PoolSeedPrefix        = "liquidity_pool"
	LiquidityProviderSeed = "LiqudityProvider"
)

// Типы swap (поле style).
const (
	StyleSell uint64 = 1
	StyleBuy  uint64 = 2
)

// Масштабы сумм.
const (
	LamportsPerSol uint64 = 1_000_000_000
	TokenUnit      uint64 = 1_000_000
	TokenDecimals  uint8  = 6
	TotalSupply    uint64 = 1_000_000_000_000_000
	InitialQuote   uint64 = 30_000_000_000
	baseUnitPerPct uint64 = 10_000_000_000_000
)

// InitialReserves - резервы пула сразу после add_liquidity, как их учитывает бэкенд.
func InitialReserves() (base, quote uint64) {
	return TotalSupply, InitialQuote
}

// PoolAccounts содержит адреса, выводимые из mint.
type PoolAccounts struct {
	Program          solana.PublicKey
	CurveConfig      solana.PublicKey
	Global           solana.PublicKey
	Pool             solana.PublicKey
	Mint             solana.PublicKey
	PoolTokenAccount solana.PublicKey
}

// Program - обертка над ID программы кривой.
type Program struct {
	ID solana.PublicKey
}

// NewProgram возвращает программу с заданным ID; нулевой ключ заменяется на DefaultProgramID.
func NewProgram(id solana.PublicKey) *Program {
	if id.IsZero() {
		id = DefaultProgramID
	}
	return &Program{ID: id}
}

// CurveConfig вычисляет PDA конфигурации кривой.
func (p *Program) CurveConfig() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(CurveConfigSeed)}, p.ID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive curve config: %w", err)
	}
	return addr, nil
}

// Global вычисляет PDA глобального аккаунта программы.
func (p *Program) Global() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(GlobalSeed)}, p.ID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive global account: %w", err)
	}
	return addr, nil
}

// Pool вычисляет PDA пула ликвидности для mint.
func (p *Program) Pool(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(PoolSeedPrefix), mint.Bytes()}, p.ID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive pool: %w", err)
	}
	return addr, nil
}

// LiquidityProvider вычисляет PDA записи поставщика ликвидности.
func (p *Program) LiquidityProvider(pool, user solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(LiquidityProviderSeed), pool.Bytes(), user.Bytes()},
		p.ID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive liquidity provider: %w", err)
	}
	return addr, nil
}

// DerivePoolAccounts вычисляет все адреса пула для mint.
func (p *Program) DerivePoolAccounts(mint solana.PublicKey) (*PoolAccounts, error) {
	curveConfig, err := p.CurveConfig()
	if err != nil {
		return nil, err
	}
	global, err := p.Global()
	if err != nil {
		return nil, err
	}
	pool, err := p.Pool(mint)
	if err != nil {
		return nil, err
	}
	// Токен-аккаунт пула принадлежит global (PDA), поэтому адрес off-curve.
	poolToken, _, err := solana.FindAssociatedTokenAddress(global, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive pool token account: %w", err)
	}

	return &PoolAccounts{
		Program:          p.ID,
		CurveConfig:      curveConfig,
		Global:           global,
		Pool:             pool,
		Mint:             mint,
		PoolTokenAccount: poolToken,
	}, nil
}

// Discriminator возвращает 8-байтный anchor-дискриминатор инструкции.
func Discriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + toSnakeCase(name)))
	return sum[:8]
}

func toSnakeCase(name string) string {
	if strings.Contains(name, "_") || strings.ToLower(name) == name {
		return name
	}
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
