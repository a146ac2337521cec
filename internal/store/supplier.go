package store

import (
	"fmt"
	"strconv"
	"sync"

	"medsupply/m/domain"
	"medsupply/m/internal/rowstore"
)

// SupplierStore owns the supplier table. Row layout:
// code, name, active, packed item list ("HC:20;GL:5;").
type SupplierStore struct {
	mu   sync.Mutex
	rows *rowstore.Store
}

// OpenSuppliers opens the supplier table.
func OpenSuppliers(dir string) (*SupplierStore, error) {
	rows, err := rowstore.Open(dir, "supplier")
	if err != nil {
		return nil, err
	}
	return &SupplierStore{rows: rows}, nil
}

// Add appends a new supplier. Duplicate codes are rejected.
func (s *SupplierStore) Add(sup domain.Supplier) error {
	if err := checkFields(sup.Code, sup.Name); err != nil {
		return err
	}
	for _, it := range sup.Items {
		if err := checkItemCode(it.ItemCode); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findByCode(sup.Code); ok {
		return fmt.Errorf("%w: supplier code %s already exists", ErrConflict, sup.Code)
	}
	return s.rows.Put(s.rows.NextIndex(), supplierToRow(sup))
}

// RecordReceipt adds quantity to the supplier's running total for an
// item. The (supplier, item) association is created when absent; an
// unknown supplier code is an error.
func (s *SupplierStore) RecordReceipt(supplierCode, itemCode string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: receipt quantity must be positive", ErrValidation)
	}
	if err := checkItemCode(itemCode); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(supplierCode)
	if !ok {
		return fmt.Errorf("%w: supplier %s", ErrNotFound, supplierCode)
	}
	row, _ := s.rows.Get(index)
	sup := supplierFromRow(row)
	found := false
	for i := range sup.Items {
		if sup.Items[i].ItemCode == itemCode {
			sup.Items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		sup.Items = append(sup.Items, domain.SupplierItem{ItemCode: itemCode, Quantity: quantity})
	}
	return s.rows.Put(index, supplierToRow(sup))
}

// ReceivedQuantity reports the recorded total for one (supplier,
// item) pair, zero if no association exists.
func (s *SupplierStore) ReceivedQuantity(supplierCode, itemCode string) int {
	sup, err := s.FindByCode(supplierCode)
	if err != nil {
		return 0
	}
	for _, it := range sup.Items {
		if it.ItemCode == itemCode {
			return it.Quantity
		}
	}
	return 0
}

// FindByCode returns the supplier with the given code.
func (s *SupplierStore) FindByCode(code string) (domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return domain.Supplier{}, fmt.Errorf("%w: supplier %s", ErrNotFound, code)
	}
	row, _ := s.rows.Get(index)
	return supplierFromRow(row), nil
}

// List returns every supplier in row order.
func (s *SupplierStore) List() []domain.Supplier {
	s.mu.Lock()
	defer s.mu.Unlock()
	var suppliers []domain.Supplier
	for _, i := range s.rows.Indexes() {
		row, _ := s.rows.Get(i)
		if len(row) >= 3 {
			suppliers = append(suppliers, supplierFromRow(row))
		}
	}
	return suppliers
}

// Names returns supplier display names in row order.
func (s *SupplierStore) Names() []string {
	var names []string
	for _, sup := range s.List() {
		names = append(names, sup.Name)
	}
	return names
}

// CodeByName resolves a supplier display name to its code.
func (s *SupplierStore) CodeByName(name string) (string, error) {
	for _, sup := range s.List() {
		if sup.Name == name {
			return sup.Code, nil
		}
	}
	return "", fmt.Errorf("%w: supplier named %q", ErrNotFound, name)
}

// NameByCode resolves a supplier code to its display name.
func (s *SupplierStore) NameByCode(code string) (string, error) {
	sup, err := s.FindByCode(code)
	if err != nil {
		return "", err
	}
	return sup.Name, nil
}

// Update rewrites the named supplier's row, keeping its code.
func (s *SupplierStore) Update(code string, sup domain.Supplier) error {
	if err := checkFields(sup.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: supplier %s", ErrNotFound, code)
	}
	sup.Code = code
	return s.rows.Put(index, supplierToRow(sup))
}

// Delete removes the named supplier's row.
func (s *SupplierStore) Delete(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: supplier %s", ErrNotFound, code)
	}
	return s.rows.Delete(index)
}

// SetItems overwrites a supplier's received-item list. Used by the
// reconciliation pass.
func (s *SupplierStore) SetItems(code string, items []domain.SupplierItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: supplier %s", ErrNotFound, code)
	}
	row, _ := s.rows.Get(index)
	sup := supplierFromRow(row)
	sup.Items = items
	return s.rows.Put(index, supplierToRow(sup))
}

func (s *SupplierStore) findByCode(code string) (int, bool) {
	for _, i := range s.rows.Indexes() {
		row, _ := s.rows.Get(i)
		if len(row) >= 3 && row[0] == code {
			return i, true
		}
	}
	return 0, false
}

func supplierToRow(sup domain.Supplier) []string {
	return []string{sup.Code, sup.Name, strconv.FormatBool(sup.Active), encodeSupplierItems(sup.Items)}
}

func supplierFromRow(row []string) domain.Supplier {
	sup := domain.Supplier{Code: row[0], Name: row[1], Active: parseBool(row[2])}
	if len(row) >= 4 {
		sup.Items = decodeSupplierItems(row[3])
	}
	return sup
}
