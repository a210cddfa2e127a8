// internal/storage/memory/store.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rovshanmuradov/fairlaunch/internal/storage"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
)

// Store - in-memory реализация storage.Store для разработки и тестов.
type Store struct {
	mu         sync.RWMutex
	tokens     map[string]*models.Token
	ledger     map[string][]*models.TradeRecord // keyed by mint
	signatures map[string]map[string]struct{}   // mint -> signatures
	migrations map[string]*models.MigrationState
	seq        int64
	now        func() time.Time
}

// NewStore создает пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		tokens:     make(map[string]*models.Token),
		ledger:     make(map[string][]*models.TradeRecord),
		signatures: make(map[string]map[string]struct{}),
		migrations: make(map[string]*models.MigrationState),
		now:        time.Now,
	}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// CreateToken сохраняет новый токен. ErrDuplicateKey, если mint уже есть.
func (s *Store) CreateToken(_ context.Context, t *models.Token) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	tokenCopy := *t
	if tokenCopy.CreatedAt.IsZero() {
		tokenCopy.CreatedAt = s.now()
	}
	tokenCopy.UpdatedAt = tokenCopy.CreatedAt
	s.tokens[t.Mint] = &tokenCopy
	return nil
}

// FindTokenByMint возвращает копию токена. ErrNotFound, если его нет.
func (s *Store) FindTokenByMint(_ context.Context, mint string) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tokens[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	tokenCopy := *t
	return &tokenCopy, nil
}

// UpsertReserves перезаписывает резервы токена.
func (s *Store) UpsertReserves(_ context.Context, mint string, base, quote uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tokens[mint]
	if !exists {
		return storage.ErrNotFound
	}
	t.BaseReserve = base
	t.QuoteReserve = quote
	t.UpdatedAt = s.now()
	return nil
}

// AppendLedgerEntry добавляет запись, если подпись еще не встречалась для mint.
func (s *Store) AppendLedgerEntry(_ context.Context, r *models.TradeRecord) (bool, error) {
	if r == nil || r.Mint == "" || r.Signature == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen, ok := s.signatures[r.Mint]
	if !ok {
		seen = make(map[string]struct{})
		s.signatures[r.Mint] = seen
	}
	if _, dup := seen[r.Signature]; dup {
		return false, nil
	}

	s.seq++
	recordCopy := *r
	recordCopy.Seq = s.seq
	if recordCopy.CreatedAt.IsZero() {
		recordCopy.CreatedAt = s.now()
	}
	seen[r.Signature] = struct{}{}
	s.ledger[r.Mint] = append(s.ledger[r.Mint], &recordCopy)
	r.Seq = recordCopy.Seq
	return true, nil
}

// FindLedgerByMint возвращает копию истории в порядке добавления.
func (s *Store) FindLedgerByMint(_ context.Context, mint string) ([]*models.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.ledger[mint]
	result := make([]*models.TradeRecord, 0, len(records))
	for _, r := range records {
		recordCopy := *r
		result = append(result, &recordCopy)
	}
	return result, nil
}

// RecentPrices возвращает последние limit цен.
func (s *Store) RecentPrices(_ context.Context, mint string, limit int) ([]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.ledger[mint]
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	points := make([]models.PricePoint, 0, len(records))
	for _, r := range records {
		points = append(points, models.PricePoint{Price: r.Price, Signature: r.Signature, Time: r.CreatedAt})
	}
	return points, nil
}

// GetMigration возвращает копию состояния миграции.
func (s *Store) GetMigration(_ context.Context, mint string) (*models.MigrationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.migrations[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	stateCopy := *m
	return &stateCopy, nil
}

// SaveMigration создает или обновляет состояние миграции.
func (s *Store) SaveMigration(_ context.Context, m *models.MigrationState) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stateCopy := *m
	if prev, exists := s.migrations[m.Mint]; exists {
		stateCopy.CreatedAt = prev.CreatedAt
	} else if stateCopy.CreatedAt.IsZero() {
		stateCopy.CreatedAt = now
	}
	stateCopy.UpdatedAt = now
	s.migrations[m.Mint] = &stateCopy
	return nil
}

// ListResumableMigrations возвращает незавершенные миграции, старые первыми.
func (s *Store) ListResumableMigrations(_ context.Context) ([]*models.MigrationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.MigrationState
	for _, m := range s.migrations {
		if m.Step.Resumable() && !m.Migrated {
			stateCopy := *m
			result = append(result, &stateCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Close ничего не делает.
func (s *Store) Close() error {
	return nil
}
