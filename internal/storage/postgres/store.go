// internal/storage/postgres/store.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rovshanmuradov/fairlaunch/internal/storage"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
)

// Store реализует storage.Store поверх PostgreSQL.
type Store struct {
	pool *Pool
}

// NewStore создает хранилище поверх пула.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Close закрывает пул соединений.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// CreateToken сохраняет новый токен. ErrDuplicateKey, если mint уже есть.
func (s *Store) CreateToken(ctx context.Context, t *models.Token) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tokens (
			mint, creator, name, symbol, description, uri,
			base_reserve, quote_reserve, threshold, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	_, err := s.pool.Exec(ctx, query,
		t.Mint, t.Creator, t.Name, t.Symbol, t.Description, t.URI,
		int64(t.BaseReserve), int64(t.QuoteReserve), t.Threshold, createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// FindTokenByMint возвращает токен. ErrNotFound, если его нет.
func (s *Store) FindTokenByMint(ctx context.Context, mint string) (*models.Token, error) {
	query := `
		SELECT mint, creator, name, symbol, description, uri,
		       base_reserve, quote_reserve, threshold, created_at, updated_at
		FROM tokens
		WHERE mint = $1
	`
	var (
		t           models.Token
		base, quote int64
	)
	err := s.pool.QueryRow(ctx, query, mint).Scan(
		&t.Mint, &t.Creator, &t.Name, &t.Symbol, &t.Description, &t.URI,
		&base, &quote, &t.Threshold, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query token: %w", err)
	}
	t.BaseReserve = uint64(base)
	t.QuoteReserve = uint64(quote)
	return &t, nil
}

// UpsertReserves перезаписывает резервы токена.
func (s *Store) UpsertReserves(ctx context.Context, mint string, base, quote uint64) error {
	query := `
		UPDATE tokens
		SET base_reserve = $2, quote_reserve = $3, updated_at = now()
		WHERE mint = $1
	`
	tag, err := s.pool.Exec(ctx, query, mint, int64(base), int64(quote))
	if err != nil {
		return fmt.Errorf("update reserves: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendLedgerEntry добавляет запись; повтор подписи для mint игнорируется.
func (s *Store) AppendLedgerEntry(ctx context.Context, r *models.TradeRecord) (bool, error) {
	if r == nil || r.Mint == "" || r.Signature == "" {
		return false, storage.ErrInvalidInput
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO trade_records (mint, holder, kind, amount, signature, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mint, signature) DO NOTHING
		RETURNING seq
	`
	var seq int64
	err := s.pool.QueryRow(ctx, query,
		r.Mint, r.Holder, int16(r.Kind), int64(r.Amount), r.Signature, r.Price, createdAt,
	).Scan(&seq)
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert trade record: %w", err)
	}
	r.Seq = seq
	return true, nil
}

// FindLedgerByMint возвращает историю токена в порядке добавления.
func (s *Store) FindLedgerByMint(ctx context.Context, mint string) ([]*models.TradeRecord, error) {
	query := `
		SELECT seq, mint, holder, kind, amount, signature, price, created_at
		FROM trade_records
		WHERE mint = $1
		ORDER BY seq ASC
	`
	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query trade records: %w", err)
	}
	defer rows.Close()

	var result []*models.TradeRecord
	for rows.Next() {
		r, err := scanTradeRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade records: %w", err)
	}
	return result, nil
}

// RecentPrices возвращает последние limit цен в порядке добавления.
func (s *Store) RecentPrices(ctx context.Context, mint string, limit int) ([]models.PricePoint, error) {
	query := `
		SELECT price, signature, created_at FROM (
			SELECT seq, price, signature, created_at
			FROM trade_records
			WHERE mint = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq ASC
	`
	rows, err := s.pool.Query(ctx, query, mint, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent prices: %w", err)
	}
	defer rows.Close()

	points := make([]models.PricePoint, 0, limit)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Price, &p.Signature, &p.Time); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent prices: %w", err)
	}
	return points, nil
}

func scanTradeRecord(rows pgx.Rows) (*models.TradeRecord, error) {
	var (
		r      models.TradeRecord
		kind   int16
		amount int64
	)
	if err := rows.Scan(&r.Seq, &r.Mint, &r.Holder, &kind, &amount, &r.Signature, &r.Price, &r.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan trade record: %w", err)
	}
	r.Kind = models.TradeKind(kind)
	r.Amount = uint64(amount)
	return &r, nil
}

// GetMigration возвращает состояние миграции. ErrNotFound, если его нет.
func (s *Store) GetMigration(ctx context.Context, mint string) (*models.MigrationState, error) {
	query := `
		SELECT mint, creator, step, target_amount, market_id, signature,
		       migrated, attempts, last_error, created_at, updated_at
		FROM migrations
		WHERE mint = $1
	`
	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query migration: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query migration: %w", err)
		}
		return nil, storage.ErrNotFound
	}
	return scanMigration(rows)
}

// SaveMigration создает или обновляет состояние миграции.
func (s *Store) SaveMigration(ctx context.Context, m *models.MigrationState) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO migrations (
			mint, creator, step, target_amount, market_id, signature,
			migrated, attempts, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (mint) DO UPDATE SET
			creator = EXCLUDED.creator,
			step = EXCLUDED.step,
			target_amount = EXCLUDED.target_amount,
			market_id = EXCLUDED.market_id,
			signature = EXCLUDED.signature,
			migrated = EXCLUDED.migrated,
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			updated_at = now()
	`
	_, err := s.pool.Exec(ctx, query,
		m.Mint, m.Creator, string(m.Step), int64(m.TargetAmount), m.MarketID, m.Signature,
		m.Migrated, m.Attempts, m.LastError,
	)
	if err != nil {
		return fmt.Errorf("save migration: %w", err)
	}
	return nil
}

// ListResumableMigrations возвращает незавершенные миграции, старые первыми.
func (s *Store) ListResumableMigrations(ctx context.Context) ([]*models.MigrationState, error) {
	query := `
		SELECT mint, creator, step, target_amount, market_id, signature,
		       migrated, attempts, last_error, created_at, updated_at
		FROM migrations
		WHERE step IN ($1, $2) AND NOT migrated
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, string(models.MigrationPending), string(models.MigrationMarketCreated))
	if err != nil {
		return nil, fmt.Errorf("query resumable migrations: %w", err)
	}
	defer rows.Close()

	var result []*models.MigrationState
	for rows.Next() {
		m, err := scanMigration(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}
	return result, nil
}

func scanMigration(rows pgx.Rows) (*models.MigrationState, error) {
	var (
		m      models.MigrationState
		step   string
		target int64
	)
	if err := rows.Scan(
		&m.Mint, &m.Creator, &step, &target, &m.MarketID, &m.Signature,
		&m.Migrated, &m.Attempts, &m.LastError, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan migration: %w", err)
	}
	m.Step = models.MigrationStep(step)
	m.TargetAmount = uint64(target)
	return &m, nil
}
