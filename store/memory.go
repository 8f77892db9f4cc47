package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"currency-ledger/domain"
	"currency-ledger/events"
)

const SnapshotFrequency = 100

// MemoryStore keeps the ledger in process memory. Units buffer their changes
// and apply them in one step at commit; with a Journal attached every commit
// is written ahead to it, and the state is rebuilt from it on start.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	ownerIndex   map[string]string
	transactions map[string]*domain.Transaction
	order        []string

	locks *rowLocks

	journal           Journal
	snapshots         SnapshotStore
	snapshotFrequency uint64
	lastIndex         uint64

	logger *zap.Logger
	now    func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithJournal makes the store durable through j.
func WithJournal(j Journal) MemoryOption {
	return func(s *MemoryStore) {
		s.journal = j
	}
}

// WithSnapshots periodically stores full snapshots in ss.
func WithSnapshots(ss SnapshotStore, frequency uint64) MemoryOption {
	return func(s *MemoryStore) {
		s.snapshots = ss
		if frequency > 0 {
			s.snapshotFrequency = frequency
		}
	}
}

func WithLogger(logger *zap.Logger) MemoryOption {
	return func(s *MemoryStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates the store and restores its state from the latest
// snapshot and the journal, if configured.
func NewMemoryStore(opts ...MemoryOption) (*MemoryStore, error) {
	s := &MemoryStore{
		accounts:          make(map[string]*domain.Account),
		ownerIndex:        make(map[string]string),
		transactions:      make(map[string]*domain.Transaction),
		order:             make([]string, 0),
		locks:             newRowLocks(),
		snapshotFrequency: SnapshotFrequency,
		logger:            zap.NewNop(),
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.recover(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryStore) recover() error {
	if s.snapshots != nil {
		snapshot, found, err := s.snapshots.GetLatestSnapshot()
		if err != nil {
			s.logger.Warn("failed to load ledger snapshot, replaying full journal", zap.Error(err))
		} else if found {
			state, err := domain.ApplySnapshot(snapshot)
			if err != nil {
				return errors.Wrap(err, "restore ledger snapshot")
			}
			for _, acc := range state.Accounts {
				s.putAccount(acc)
			}
			for _, tr := range state.Transactions {
				s.putTransaction(tr)
			}
			s.sortOrder()
			s.lastIndex = snapshot.Index
			s.logger.Info("ledger snapshot restored",
				zap.Uint64("index", snapshot.Index),
				zap.Int("accounts", len(state.Accounts)),
				zap.Int("transactions", len(state.Transactions)))
		}
	}

	if s.journal == nil {
		return nil
	}

	replayed := 0
	err := s.journal.Replay(s.lastIndex, func(index uint64, event events.Event) error {
		if index != s.lastIndex+1 {
			return errors.Wrapf(ErrJournalGap, "restored up to %d, next entry is %d", s.lastIndex, index)
		}
		switch e := event.(type) {
		case events.AccountOpenedEvent:
			s.putAccount(e.Account)
		case events.AccountUpdatedEvent:
			s.putAccount(e.Account)
		case events.UnitCommittedEvent:
			for _, acc := range e.Accounts {
				s.putAccount(acc)
			}
			for _, tr := range e.Transactions {
				s.putTransaction(tr)
			}
		default:
			return fmt.Errorf("unexpected journal event %T", event)
		}
		s.lastIndex = index
		replayed++
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "replay ledger journal")
	}
	if replayed > 0 {
		s.logger.Info("ledger journal replayed", zap.Int("entries", replayed), zap.Uint64("index", s.lastIndex))
	}
	return nil
}

func (s *MemoryStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{
		store:        s,
		order:        newLockOrder(),
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
	}
	defer tx.releaseAll()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "atomic unit abandoned before commit")
	}
	return s.commit(tx)
}

func (s *MemoryStore) commit(tx *memTx) error {
	if len(tx.accounts) == 0 && len(tx.transactions) == 0 {
		return nil
	}

	event := events.UnitCommittedEvent{
		BaseEvent:    events.NewBaseEvent(events.UnitCommittedType),
		Accounts:     make([]*domain.Account, 0, len(tx.accounts)),
		Transactions: make([]*domain.Transaction, 0, len(tx.transactions)),
	}
	for _, acc := range tx.accounts {
		event.Accounts = append(event.Accounts, acc)
	}
	sort.Slice(event.Accounts, func(i, j int) bool { return event.Accounts[i].ID < event.Accounts[j].ID })
	for _, id := range tx.inserted {
		event.Transactions = append(event.Transactions, tx.transactions[id])
	}
	for id, tr := range tx.transactions {
		if !tx.isInserted(id) {
			event.Transactions = append(event.Transactions, tr)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendJournal(event); err != nil {
		return err
	}
	for _, acc := range event.Accounts {
		s.putAccount(acc)
	}
	for _, tr := range event.Transactions {
		s.putTransaction(tr)
	}
	return nil
}

// appendJournal must be called with s.mu held.
func (s *MemoryStore) appendJournal(event events.Event) error {
	if s.journal == nil {
		return nil
	}
	index, err := s.journal.Append(event)
	if err != nil {
		return errors.Wrap(err, "append ledger journal")
	}
	s.lastIndex = index

	if s.snapshots != nil && index%s.snapshotFrequency == 0 {
		snapshot, err := domain.CreateSnapshot(index, s.accounts, s.transactions)
		if err != nil {
			s.logger.Error("failed to create ledger snapshot", zap.Uint64("index", index), zap.Error(err))
			return nil
		}
		// the snapshot is taken before this entry is applied, so it
		// covers entries up to index-1
		snapshot.Index = index - 1
		if err := s.snapshots.SaveSnapshot(snapshot); err != nil {
			s.logger.Error("failed to save ledger snapshot", zap.Uint64("index", index), zap.Error(err))
		}
	}
	return nil
}

// putAccount must be called with s.mu held or before the store is shared.
func (s *MemoryStore) putAccount(acc *domain.Account) {
	cp := acc.Clone()
	s.accounts[cp.ID] = cp
	s.ownerIndex[ownerKey(cp.OwnerID, string(cp.Currency))] = cp.ID
}

func (s *MemoryStore) putTransaction(tr *domain.Transaction) {
	if _, exists := s.transactions[tr.ID]; !exists {
		s.order = append(s.order, tr.ID)
	}
	s.transactions[tr.ID] = tr.Clone()
}

func (s *MemoryStore) sortOrder() {
	sort.SliceStable(s.order, func(i, j int) bool {
		a, b := s.transactions[s.order[i]], s.transactions[s.order[j]]
		if a.Created.Equal(b.Created) {
			return a.ID < b.ID
		}
		return a.Created.Before(b.Created)
	})
}

func (s *MemoryStore) CreateAccount(ctx context.Context, account *domain.Account) error {
	if account == nil {
		return errors.New("cannot create nil account")
	}
	if err := account.CheckInvariant(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ownerIndex[ownerKey(account.OwnerID, string(account.Currency))]; exists {
		return fmt.Errorf("%w: owner %s, currency %s", domain.ErrAccountExists, account.OwnerID, account.Currency)
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("%w: id %s", domain.ErrAccountExists, account.ID)
	}
	now := s.now()
	account.Created = now
	account.Updated = now

	event := events.AccountOpenedEvent{
		BaseEvent: events.NewBaseEvent(events.AccountOpenedType),
		Account:   account.Clone(),
	}
	if err := s.appendJournal(event); err != nil {
		return err
	}
	s.putAccount(account)
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return acc.Clone(), nil
}

func (s *MemoryStore) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Account, 0)
	for _, acc := range s.accounts {
		if ownerID == "" || acc.OwnerID == ownerID {
			out = append(out, acc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

// SetAccountActive takes the account row lock so it never interleaves with a
// unit holding that account.
func (s *MemoryStore) SetAccountActive(ctx context.Context, id string, active bool) (*domain.Account, error) {
	key := accountKey(id)
	if err := s.locks.acquire(ctx, key); err != nil {
		return nil, errors.Wrapf(err, "lock account %s", id)
	}
	defer s.locks.release(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	updated := acc.Clone()
	updated.Active = active
	updated.Updated = s.now()

	event := events.AccountUpdatedEvent{
		BaseEvent: events.NewBaseEvent(events.AccountUpdatedType),
		Account:   updated.Clone(),
	}
	if err := s.appendJournal(event); err != nil {
		return nil, err
	}
	s.putAccount(updated)
	return updated, nil
}

func (s *MemoryStore) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tr, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	return tr.Clone(), nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, accountIDs ...string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Transaction, 0)
	for _, id := range s.order {
		tr := s.transactions[id]
		for _, accountID := range accountIDs {
			if tr.Involves(accountID) {
				out = append(out, tr.Clone())
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) RelatedTransactions(ctx context.Context, id string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Transaction, 0)
	for _, trID := range s.order {
		tr := s.transactions[trID]
		if tr.RelatedID != nil && *tr.RelatedID == id {
			out = append(out, tr.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

func ownerKey(ownerID, currency string) string {
	return ownerID + "|" + currency
}

// memTx buffers the changes of one unit. Every account it touches is locked,
// so buffered balances are never stale.
type memTx struct {
	store *MemoryStore
	order *lockOrder
	held  []string

	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
	inserted     []string
}

func (tx *memTx) LockAccounts(ctx context.Context, ids ...string) error {
	pending, err := tx.order.pendingAccounts(ids)
	if err != nil {
		return errors.Wrapf(err, "lock accounts %v", ids)
	}
	for _, id := range pending {
		key := accountKey(id)
		if err := tx.store.locks.acquire(ctx, key); err != nil {
			return errors.Wrapf(err, "lock account %s", id)
		}
		tx.held = append(tx.held, key)
		tx.order.holdAccount(id)
	}
	return nil
}

func (tx *memTx) LockAccount(ctx context.Context, id string) (*domain.Account, error) {
	if err := tx.LockAccounts(ctx, id); err != nil {
		return nil, err
	}
	acc, err := tx.readAccount(id)
	if err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

func (tx *memTx) readAccount(id string) (*domain.Account, error) {
	if acc, ok := tx.accounts[id]; ok {
		return acc, nil
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	acc, ok := tx.store.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return acc.Clone(), nil
}

func (tx *memTx) UpdateBalance(ctx context.Context, account *domain.Account) error {
	if !tx.order.accounts[account.ID] {
		return errors.Wrapf(domain.ErrLockOrder, "account %s updated without lock", account.ID)
	}
	if err := account.CheckInvariant(); err != nil {
		return err
	}
	current, err := tx.readAccount(account.ID)
	if err != nil {
		return err
	}
	updated := current.Clone()
	updated.Balance = account.Balance
	updated.Updated = tx.store.now()
	tx.accounts[account.ID] = updated
	return nil
}

func (tx *memTx) IncrementBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	if err := tx.LockAccounts(ctx, id); err != nil {
		return err
	}
	current, err := tx.readAccount(id)
	if err != nil {
		return err
	}
	updated := current.Clone()
	updated.Credit(delta)
	if err := updated.CheckInvariant(); err != nil {
		return err
	}
	updated.Updated = tx.store.now()
	tx.accounts[id] = updated
	return nil
}

func (tx *memTx) LockTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	if err := tx.order.canLockTransaction(id); err != nil {
		return nil, errors.Wrapf(err, "lock transaction %s", id)
	}
	if !tx.order.transactions[id] {
		key := transactionKey(id)
		if err := tx.store.locks.acquire(ctx, key); err != nil {
			return nil, errors.Wrapf(err, "lock transaction %s", id)
		}
		tx.held = append(tx.held, key)
		tx.order.transactions[id] = true
	}
	tr, err := tx.readTransaction(id)
	if err != nil {
		return nil, err
	}
	return tr.Clone(), nil
}

func (tx *memTx) readTransaction(id string) (*domain.Transaction, error) {
	if tr, ok := tx.transactions[id]; ok {
		return tr, nil
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	tr, ok := tx.store.transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	return tr.Clone(), nil
}

func (tx *memTx) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	if tr.IsExecuted() {
		return errors.Wrapf(domain.ErrAlreadyExecuted, "transaction %s", tr.ID)
	}
	tr.ID = uuid.NewString()
	now := tx.store.now()
	tr.Created = now
	tr.Updated = now
	tx.transactions[tr.ID] = tr.Clone()
	tx.inserted = append(tx.inserted, tr.ID)
	return nil
}

func (tx *memTx) UpdateTransaction(ctx context.Context, tr *domain.Transaction) error {
	if !tx.isInserted(tr.ID) && !tx.order.transactions[tr.ID] {
		return errors.Wrapf(domain.ErrLockOrder, "transaction %s updated without lock", tr.ID)
	}
	current, err := tx.readTransaction(tr.ID)
	if err != nil {
		return err
	}
	updated := current.Clone()
	updated.Type = tr.Type
	updated.RelatedID = tr.Clone().RelatedID
	updated.Updated = tx.store.now()
	tx.transactions[tr.ID] = updated
	tr.Updated = updated.Updated
	return nil
}

func (tx *memTx) isInserted(id string) bool {
	for _, insertedID := range tx.inserted {
		if insertedID == id {
			return true
		}
	}
	return false
}

func (tx *memTx) releaseAll() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.store.locks.release(tx.held[i])
	}
	tx.held = nil
}
