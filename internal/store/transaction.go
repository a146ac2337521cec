package store

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"medsupply/m/domain"
	"medsupply/m/internal/rowstore"
)

// timestampLayout is the on-disk format of ledger timestamps.
const timestampLayout = "2006-01-02 15:04:05"

// TransactionStore owns the append-only ledger. Row layout:
// id, item code, counterparty code, direction, quantity, timestamp.
// Rows are never updated or deleted during normal operation.
type TransactionStore struct {
	mu    sync.Mutex
	rows  *rowstore.Store
	maxID int
}

// OpenTransactions opens the ledger and recomputes the id allocator
// from the persisted rows.
func OpenTransactions(dir string) (*TransactionStore, error) {
	rows, err := rowstore.Open(dir, "transactions")
	if err != nil {
		return nil, err
	}
	s := &TransactionStore{rows: rows}
	s.maxID = s.scanMaxID()
	return s, nil
}

func (s *TransactionStore) scanMaxID() int {
	max := 0
	for _, row := range s.rows.Entries() {
		if len(row) < 1 {
			continue
		}
		if id, err := strconv.Atoi(row[0]); err == nil && id > max {
			max = id
		}
	}
	return max
}

// Append assigns the next monotonic id, stamps the record and
// persists it at the next row index. The stamped transaction is
// returned.
func (s *TransactionStore) Append(tx domain.Transaction) (domain.Transaction, error) {
	if !tx.Direction.Valid() {
		return domain.Transaction{}, fmt.Errorf("%w: direction must be %s or %s", ErrValidation, domain.Distribute, domain.Receive)
	}
	if tx.Quantity <= 0 {
		return domain.Transaction{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if err := checkItemCode(tx.ItemCode); err != nil {
		return domain.Transaction{}, err
	}
	if err := checkFields(tx.CounterpartyCode); err != nil {
		return domain.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxID++
	tx.ID = s.maxID
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now()
	}
	if err := s.rows.Put(s.rows.NextIndex(), transactionToRow(tx)); err != nil {
		s.maxID--
		return domain.Transaction{}, err
	}
	return tx, nil
}

// List reconstructs the typed ledger in ascending row order. A
// malformed row is logged and skipped; it never aborts the listing.
func (s *TransactionStore) List() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var txs []domain.Transaction
	for _, i := range s.rows.Indexes() {
		row, _ := s.rows.Get(i)
		tx, err := transactionFromRow(row)
		if err != nil {
			log.Printf("ledger: skipping malformed row %d: %v", i, err)
			continue
		}
		txs = append(txs, tx)
	}
	return txs
}

// Reload re-reads the backing file, discarding in-memory state, so a
// long-lived process observes writes made elsewhere.
func (s *TransactionStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rows.Reload(); err != nil {
		return err
	}
	s.maxID = s.scanMaxID()
	return nil
}

func transactionToRow(tx domain.Transaction) []string {
	return []string{
		strconv.Itoa(tx.ID),
		tx.ItemCode,
		tx.CounterpartyCode,
		string(tx.Direction),
		strconv.Itoa(tx.Quantity),
		tx.Timestamp.Format(timestampLayout),
	}
}

// transactionFromRow decodes a ledger row. The timestamp column is
// optional in legacy data; absent or unparseable timestamps fall back
// to the current time.
func transactionFromRow(row []string) (domain.Transaction, error) {
	if len(row) < 5 {
		return domain.Transaction{}, fmt.Errorf("expected at least 5 fields, got %d", len(row))
	}
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("bad transaction id %q", row[0])
	}
	qty, err := strconv.Atoi(row[4])
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("bad quantity %q", row[4])
	}
	if !domain.Direction(row[3]).Valid() {
		return domain.Transaction{}, fmt.Errorf("bad direction %q", row[3])
	}
	tx := domain.Transaction{
		ID:               id,
		ItemCode:         row[1],
		CounterpartyCode: row[2],
		Direction:        domain.Direction(row[3]),
		Quantity:         qty,
		Timestamp:        time.Now(),
	}
	if len(row) >= 6 {
		if ts, err := time.ParseInLocation(timestampLayout, row[5], time.Local); err == nil {
			tx.Timestamp = ts
		}
	}
	return tx, nil
}
