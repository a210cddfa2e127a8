// internal/storage/models/migration.go
package models

import "time"

// MigrationStep - курсор конечного автомата миграции.
type MigrationStep string

const (
	MigrationPending       MigrationStep = "pending"
	MigrationMarketCreated MigrationStep = "market_created"
	MigrationCompleted     MigrationStep = "completed"
	MigrationFailed        MigrationStep = "failed"
)

// Resumable сообщает, можно ли продолжить миграцию с этого шага.
func (s MigrationStep) Resumable() bool {
	return s == MigrationPending || s == MigrationMarketCreated
}

// MigrationState - сохраненное состояние переноса ликвидности токена в Raydium.
type MigrationState struct {
	Mint         string
	Creator      string
	Step         MigrationStep
	TargetAmount uint64
	MarketID     string
	Signature    string
	Migrated     bool
	Attempts     int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
