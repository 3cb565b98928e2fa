// Package memory is an in-process implementation of the repository ports.
// Transactions are serialized store-wide, which gives the same guarantees as
// the row locks taken by the PostgreSQL repositories. Rollback restores a
// snapshot taken at Begin, and reads made outside the open transaction see
// that snapshot until Commit.
package memory

import (
	"context"
	"errors"
	"sync"

	"shipa-backend/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNoSQL = errors.New("memory store does not execute SQL")

// Store holds every table in memory.
type Store struct {
	sem chan struct{} // held by the open transaction or autocommit write

	mu           sync.RWMutex
	wallets      map[uuid.UUID]domain.Wallet
	transactions []domain.Transaction
	orders       map[uuid.UUID]domain.Order
	shops        map[uuid.UUID]domain.Shop
	menuItems    map[uuid.UUID]domain.MenuItem
	users        map[uuid.UUID]domain.User
	audits       []domain.AuditLog

	committed *tables // last committed state while a transaction is open
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		sem:       make(chan struct{}, 1),
		wallets:   make(map[uuid.UUID]domain.Wallet),
		orders:    make(map[uuid.UUID]domain.Order),
		shops:     make(map[uuid.UUID]domain.Shop),
		menuItems: make(map[uuid.UUID]domain.MenuItem),
		users:     make(map[uuid.UUID]domain.User),
	}
}

// Stats counts rows per table.
type Stats struct {
	Wallets      int
	Transactions int
	Orders       int
	Shops        int
	MenuItems    int
	Users        int
	AuditLogs    int
}

// Stats counts committed rows.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.read(nil)
	return Stats{
		Wallets:      len(t.wallets),
		Transactions: len(t.transactions),
		Orders:       len(t.orders),
		Shops:        len(s.shops),
		MenuItems:    len(s.menuItems),
		Users:        len(s.users),
		AuditLogs:    len(s.audits),
	}
}

// PutUser, PutShop, PutMenuItem and PutWallet seed reference data.

func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutShop(shop domain.Shop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shops[shop.ID] = shop
}

func (s *Store) PutMenuItem(mi domain.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuItems[mi.ID] = mi
}

func (s *Store) PutWallet(w domain.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.ID] = w
}

// Name and Ping make the store a ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Begin implements ports.DBTransactor. It blocks until no other transaction
// is open or ctx is done.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.live().clone()
	s.committed = &snap
	return &Tx{store: s}, nil
}

// autocommit runs fn as a single-statement transaction.
func (s *Store) autocommit(ctx context.Context, fn func() error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.sem
}

// tables are the rows a transaction can write.
type tables struct {
	wallets      map[uuid.UUID]domain.Wallet
	transactions []domain.Transaction
	orders       map[uuid.UUID]domain.Order
}

func (t tables) clone() tables {
	return tables{
		wallets:      cloneMap(t.wallets),
		transactions: append([]domain.Transaction(nil), t.transactions...),
		orders:       cloneMap(t.orders),
	}
}

func (s *Store) live() tables {
	return tables{wallets: s.wallets, transactions: s.transactions, orders: s.orders}
}

// read returns the rows visible to a caller holding mu. Inside the open
// transaction that is the live data; outside it, the last committed state.
func (s *Store) read(tx pgx.Tx) tables {
	if tx == nil && s.committed != nil {
		return *s.committed
	}
	return s.live()
}

// finish ends the open transaction, restoring the committed state on rollback.
func (s *Store) finish(rollback bool) {
	s.mu.Lock()
	if rollback && s.committed != nil {
		s.wallets = s.committed.wallets
		s.transactions = s.committed.transactions
		s.orders = s.committed.orders
	}
	s.committed = nil
	s.mu.Unlock()
	s.release()
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Tx is the pgx.Tx handed out by Store.Begin. Only Commit and Rollback are
// meaningful; repositories ignore the value otherwise.
type Tx struct {
	store *Store
	done  bool
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.finish(false)
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.finish(true)
	return nil
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("memory store does not support nested transactions")
}

func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNoSQL
}

func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (t *Tx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errNoSQL
}

func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), errNoSQL
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNoSQL
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}

func (t *Tx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errNoSQL }
