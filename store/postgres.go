package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"currency-ledger/domain"
	"currency-ledger/shared"
)

const (
	pgCheckViolation  = "23514"
	pgUniqueViolation = "23505"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         text PRIMARY KEY,
	owner_id   text NOT NULL,
	currency   varchar(10) NOT NULL,
	balance    numeric(100, 5) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	is_active  boolean NOT NULL DEFAULT true,
	created    timestamptz NOT NULL,
	updated    timestamptz NOT NULL,
	UNIQUE (owner_id, currency)
);

CREATE TABLE IF NOT EXISTS transactions (
	id                  text PRIMARY KEY,
	created             timestamptz NOT NULL,
	updated             timestamptz NOT NULL,
	stock_from          text NULL REFERENCES accounts (id),
	stock_to            text NULL REFERENCES accounts (id),
	value               numeric(100, 5) NOT NULL DEFAULT 0 CHECK (value >= 0),
	type                varchar(3) NOT NULL,
	related_transaction text NULL REFERENCES transactions (id)
);

CREATE INDEX IF NOT EXISTS transactions_stock_from_idx ON transactions (stock_from);
CREATE INDEX IF NOT EXISTS transactions_stock_to_idx ON transactions (stock_to);
CREATE INDEX IF NOT EXISTS transactions_related_idx ON transactions (related_transaction);
`

const (
	accountColumns     = `id, owner_id, currency, balance::text, is_active, created, updated`
	transactionColumns = `id, created, updated, stock_from, stock_to, value::text, type, related_transaction`
)

// PostgresStore keeps the ledger in PostgreSQL and relies on row-level
// locking (SELECT ... FOR UPDATE) for exclusive access.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// ConnectPostgres opens a pool, verifies the connection and creates the schema.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "connect to database")
	}

	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("connected to postgres", zap.Int32("max_conns", cfg.MaxConns))
	return s, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "create ledger schema")
	}
	return nil
}

func (s *PostgresStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin atomic unit")
	}
	defer pgTx.Rollback(ctx)

	if err := fn(ctx, &pgStoreTx{tx: pgTx, order: newLockOrder()}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit atomic unit")
	}
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account *domain.Account) error {
	if account == nil {
		return errors.New("cannot create nil account")
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	account.Created = now
	account.Updated = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, owner_id, currency, balance, is_active, created, updated)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)`,
		account.ID, account.OwnerID, string(account.Currency), account.Balance.String(), account.Active, now, now)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return fmt.Errorf("%w: owner %s, currency %s", domain.ErrAccountExists, account.OwnerID, account.Currency)
		}
		if isPgCode(err, pgCheckViolation) {
			return fmt.Errorf("%w: initial balance %s", domain.ErrInsufficientFunds, account.Balance.String())
		}
		return errors.Wrap(err, "insert account")
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row, id)
}

func (s *PostgresStore) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE $1 = '' OR owner_id = $1
		ORDER BY created, id`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "query accounts")
	}
	defer rows.Close()

	out := make([]*domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, errors.Wrap(rows.Err(), "iterate accounts")
}

func (s *PostgresStore) SetAccountActive(ctx context.Context, id string, active bool) (*domain.Account, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE accounts SET is_active = $2, updated = $3 WHERE id = $1
		RETURNING `+accountColumns, id, active, time.Now().UTC())
	return scanAccount(row, id)
}

func (s *PostgresStore) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row, id)
}

func (s *PostgresStore) ListTransactions(ctx context.Context, accountIDs ...string) ([]*domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE stock_from = ANY($1) OR stock_to = ANY($1)
		ORDER BY created, id`, accountIDs)
}

func (s *PostgresStore) RelatedTransactions(ctx context.Context, id string) ([]*domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE related_transaction = $1
		ORDER BY created, id`, id)
}

func (s *PostgresStore) queryTransactions(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query transactions")
	}
	defer rows.Close()

	out := make([]*domain.Transaction, 0)
	for rows.Next() {
		tr, err := scanTransaction(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, errors.Wrap(rows.Err(), "iterate transactions")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type pgStoreTx struct {
	tx    pgx.Tx
	order *lockOrder
}

func (t *pgStoreTx) LockAccounts(ctx context.Context, ids ...string) error {
	pending, err := t.order.pendingAccounts(ids)
	if err != nil {
		return errors.Wrapf(err, "lock accounts %v", ids)
	}
	if len(pending) == 0 {
		return nil
	}

	rows, err := t.tx.Query(ctx, `SELECT id FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pending)
	if err != nil {
		return errors.Wrap(err, "lock accounts")
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return errors.Wrap(err, "scan locked account")
		}
		t.order.holdAccount(id)
		locked++
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "lock accounts")
	}
	if locked != len(pending) {
		return fmt.Errorf("%w: one of %v", domain.ErrAccountNotFound, pending)
	}
	return nil
}

func (t *pgStoreTx) LockAccount(ctx context.Context, id string) (*domain.Account, error) {
	if err := t.LockAccounts(ctx, id); err != nil {
		return nil, err
	}
	row := t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row, id)
}

func (t *pgStoreTx) UpdateBalance(ctx context.Context, account *domain.Account) error {
	if !t.order.accounts[account.ID] {
		return errors.Wrapf(domain.ErrLockOrder, "account %s updated without lock", account.ID)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET balance = $2::numeric, updated = $3 WHERE id = $1`,
		account.ID, account.Balance.String(), time.Now().UTC())
	if err != nil {
		if isPgCode(err, pgCheckViolation) {
			return fmt.Errorf("%w: account %s", domain.ErrInsufficientFunds, account.ID)
		}
		return errors.Wrapf(err, "update balance of account %s", account.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, account.ID)
	}
	return nil
}

func (t *pgStoreTx) IncrementBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	if err := t.LockAccounts(ctx, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2::numeric, updated = $3 WHERE id = $1`,
		id, delta.String(), time.Now().UTC())
	if err != nil {
		if isPgCode(err, pgCheckViolation) {
			return fmt.Errorf("%w: account %s", domain.ErrInsufficientFunds, id)
		}
		return errors.Wrapf(err, "increment balance of account %s", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return nil
}

func (t *pgStoreTx) LockTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	if err := t.order.canLockTransaction(id); err != nil {
		return nil, errors.Wrapf(err, "lock transaction %s", id)
	}
	row := t.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	tr, err := scanTransaction(row, id)
	if err != nil {
		return nil, err
	}
	t.order.transactions[id] = true
	return tr, nil
}

func (t *pgStoreTx) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	if tr.IsExecuted() {
		return errors.Wrapf(domain.ErrAlreadyExecuted, "transaction %s", tr.ID)
	}
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := t.tx.Exec(ctx, `
		INSERT INTO transactions (id, created, updated, stock_from, stock_to, value, type, related_transaction)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)`,
		id, now, now, tr.SourceID, tr.DestinationID, tr.Value.String(), string(tr.Type), tr.RelatedID)
	if err != nil {
		return errors.Wrap(err, "insert transaction")
	}
	tr.ID = id
	tr.Created = now
	tr.Updated = now
	return nil
}

func (t *pgStoreTx) UpdateTransaction(ctx context.Context, tr *domain.Transaction) error {
	now := time.Now().UTC()
	tag, err := t.tx.Exec(ctx, `UPDATE transactions SET type = $2, related_transaction = $3, updated = $4 WHERE id = $1`,
		tr.ID, string(tr.Type), tr.RelatedID, now)
	if err != nil {
		return errors.Wrapf(err, "update transaction %s", tr.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, tr.ID)
	}
	tr.Updated = now
	return nil
}

func scanAccount(row pgx.Row, id string) (*domain.Account, error) {
	var (
		acc      domain.Account
		currency string
		balance  string
	)
	err := row.Scan(&acc.ID, &acc.OwnerID, &currency, &balance, &acc.Active, &acc.Created, &acc.Updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan account")
	}
	acc.Currency = shared.Currency(currency)
	acc.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, errors.Wrapf(err, "parse balance of account %s", acc.ID)
	}
	return &acc, nil
}

func scanTransaction(row pgx.Row, id string) (*domain.Transaction, error) {
	var (
		tr    domain.Transaction
		value string
		typ   string
	)
	err := row.Scan(&tr.ID, &tr.Created, &tr.Updated, &tr.SourceID, &tr.DestinationID, &value, &typ, &tr.RelatedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan transaction")
	}
	tr.Type = domain.TransactionType(typ)
	tr.Value, err = decimal.NewFromString(value)
	if err != nil {
		return nil, errors.Wrapf(err, "parse value of transaction %s", tr.ID)
	}
	return &tr, nil
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
