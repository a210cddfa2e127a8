// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
)

// Ошибки хранилища
var (
	// ErrNotFound возвращается, если запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey возвращается при повторной вставке записи с тем же ключом.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput возвращается при невалидных входных данных.
	ErrInvalidInput = errors.New("invalid input")
)

// TokenStore хранит токены и их резервы.
type TokenStore interface {
	// CreateToken сохраняет новый токен. ErrDuplicateKey, если mint уже есть.
	CreateToken(ctx context.Context, t *models.Token) error

	// FindTokenByMint возвращает токен. ErrNotFound, если его нет.
	FindTokenByMint(ctx context.Context, mint string) (*models.Token, error)

	// UpsertReserves перезаписывает резервы токена. ErrNotFound, если токена нет.
	UpsertReserves(ctx context.Context, mint string, base, quote uint64) error
}

// LedgerStore хранит append-only историю торгов.
type LedgerStore interface {
	// AppendLedgerEntry добавляет запись; false без ошибки, если подпись уже записана для mint.
	AppendLedgerEntry(ctx context.Context, r *models.TradeRecord) (bool, error)

	// FindLedgerByMint возвращает историю токена в порядке добавления.
	FindLedgerByMint(ctx context.Context, mint string) ([]*models.TradeRecord, error)

	// RecentPrices возвращает последние limit цен токена в порядке добавления.
	RecentPrices(ctx context.Context, mint string, limit int) ([]models.PricePoint, error)
}

// MigrationStore хранит состояние миграций.
type MigrationStore interface {
	// GetMigration возвращает состояние. ErrNotFound, если миграция не начиналась.
	GetMigration(ctx context.Context, mint string) (*models.MigrationState, error)

	// SaveMigration создает или обновляет состояние.
	SaveMigration(ctx context.Context, s *models.MigrationState) error

	// ListResumableMigrations возвращает незавершенные миграции (pending, market_created).
	ListResumableMigrations(ctx context.Context) ([]*models.MigrationState, error)
}

// Store объединяет все хранилища платформы.
type Store interface {
	TokenStore
	LedgerStore
	MigrationStore
	Close() error
}
