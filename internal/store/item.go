package store

import (
	"fmt"
	"strconv"
	"sync"

	"medsupply/m/domain"
	"medsupply/m/internal/rowstore"
)

// itemHeader occupies row 0 of the item table; data rows start at 1.
var itemHeader = []string{"ItemCode", "ItemName", "Quantity", "SupplierCode"}

// ItemStore owns the stock table. Row layout:
// code, name, quantity, supplier code.
type ItemStore struct {
	mu   sync.Mutex
	rows *rowstore.Store
}

// OpenItems opens the item table and ensures the header row exists.
func OpenItems(dir string) (*ItemStore, error) {
	rows, err := rowstore.Open(dir, "item")
	if err != nil {
		return nil, err
	}
	if _, ok := rows.Get(0); !ok {
		if err := rows.Put(0, itemHeader); err != nil {
			return nil, err
		}
	}
	return &ItemStore{rows: rows}, nil
}

// Add appends a new item. Duplicate item codes are rejected.
func (s *ItemStore) Add(item domain.Item) error {
	if err := checkItemCode(item.Code); err != nil {
		return err
	}
	if err := checkFields(item.Name, item.SupplierCode); err != nil {
		return err
	}
	if item.Quantity < 0 {
		return fmt.Errorf("%w: initial quantity must not be negative", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findByCode(item.Code); ok {
		return fmt.Errorf("%w: item code %s already exists", ErrConflict, item.Code)
	}
	return s.rows.Put(s.rows.NextIndex(), itemToRow(item))
}

// AdjustQuantity applies a signed delta to an item's stock. The call
// fails without persisting anything when the result would be
// negative; this is the sole stock-integrity guard in the system.
func (s *ItemStore) AdjustQuantity(code string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: item %s", ErrNotFound, code)
	}
	row, _ := s.rows.Get(index)
	current, err := strconv.Atoi(row[2])
	if err != nil {
		return fmt.Errorf("%w: item %s has corrupt quantity %q", ErrIntegrity, code, row[2])
	}
	if current+delta < 0 {
		return fmt.Errorf("%w: adjusting item %s by %d would leave %d in stock", ErrIntegrity, code, delta, current+delta)
	}
	row[2] = strconv.Itoa(current + delta)
	return s.rows.Put(index, row)
}

// Quantity reports the current stock for an item, zero if unknown.
func (s *ItemStore) Quantity(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index, ok := s.findByCode(code); ok {
		row, _ := s.rows.Get(index)
		n, _ := strconv.Atoi(row[2])
		return n
	}
	return 0
}

// FindByCode returns the item with the given code.
func (s *ItemStore) FindByCode(code string) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return domain.Item{}, fmt.Errorf("%w: item %s", ErrNotFound, code)
	}
	row, _ := s.rows.Get(index)
	return itemFromRow(row), nil
}

// FindByName returns the first item with the given display name.
func (s *ItemStore) FindByName(name string) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.rows.Indexes() {
		if i == 0 {
			continue
		}
		row, _ := s.rows.Get(i)
		if len(row) >= 4 && row[1] == name {
			return itemFromRow(row), nil
		}
	}
	return domain.Item{}, fmt.Errorf("%w: item named %q", ErrNotFound, name)
}

// List returns every item in row order, skipping the header.
func (s *ItemStore) List() []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.Item
	for _, i := range s.rows.Indexes() {
		if i == 0 {
			continue
		}
		row, _ := s.rows.Get(i)
		if len(row) >= 4 {
			items = append(items, itemFromRow(row))
		}
	}
	return items
}

// Names returns the display names of all items in row order.
func (s *ItemStore) Names() []string {
	var names []string
	for _, it := range s.List() {
		names = append(names, it.Name)
	}
	return names
}

// CodeByName resolves a display name to an item code.
func (s *ItemStore) CodeByName(name string) (string, error) {
	item, err := s.FindByName(name)
	if err != nil {
		return "", err
	}
	return item.Code, nil
}

// NameByCode resolves an item code to its display name.
func (s *ItemStore) NameByCode(code string) (string, error) {
	item, err := s.FindByCode(code)
	if err != nil {
		return "", err
	}
	return item.Name, nil
}

// Update rewrites the named item's row, keeping its code.
func (s *ItemStore) Update(code string, item domain.Item) error {
	if err := checkFields(item.Name, item.SupplierCode); err != nil {
		return err
	}
	if item.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: item %s", ErrNotFound, code)
	}
	item.Code = code
	return s.rows.Put(index, itemToRow(item))
}

// Delete removes the named item's row. The row index is not reused.
func (s *ItemStore) Delete(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: item %s", ErrNotFound, code)
	}
	return s.rows.Delete(index)
}

// SetQuantity overwrites an item's stock level. Used by the
// reconciliation pass, which recomputes levels from the ledger.
func (s *ItemStore) SetQuantity(code string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: item %s", ErrNotFound, code)
	}
	row, _ := s.rows.Get(index)
	row[2] = strconv.Itoa(quantity)
	return s.rows.Put(index, row)
}

// findByCode scans for an item row by code. Caller holds the lock.
func (s *ItemStore) findByCode(code string) (int, bool) {
	for _, i := range s.rows.Indexes() {
		if i == 0 {
			continue
		}
		row, _ := s.rows.Get(i)
		if len(row) >= 4 && row[0] == code {
			return i, true
		}
	}
	return 0, false
}

func itemToRow(item domain.Item) []string {
	return []string{item.Code, item.Name, strconv.Itoa(item.Quantity), item.SupplierCode}
}

func itemFromRow(row []string) domain.Item {
	qty, _ := strconv.Atoi(row[2])
	return domain.Item{Code: row[0], Name: row[1], Quantity: qty, SupplierCode: row[3]}
}
