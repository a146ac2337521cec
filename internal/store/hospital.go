package store

import (
	"fmt"
	"strconv"
	"sync"

	"medsupply/m/domain"
	"medsupply/m/internal/rowstore"
)

// HospitalStore owns the hospital table. Row layout:
// code, name, total received, one counter per category in
// domain.Categories order, active.
type HospitalStore struct {
	mu   sync.Mutex
	rows *rowstore.Store
}

// OpenHospitals opens the hospital table.
func OpenHospitals(dir string) (*HospitalStore, error) {
	rows, err := rowstore.Open(dir, "hospital")
	if err != nil {
		return nil, err
	}
	return &HospitalStore{rows: rows}, nil
}

// Add appends a new hospital. The total is computed from the
// per-category counters at creation time and maintained in lockstep
// with them afterwards.
func (s *HospitalStore) Add(h domain.Hospital) error {
	if err := checkFields(h.Code, h.Name); err != nil {
		return err
	}
	for _, c := range domain.Categories {
		if h.Received[c] < 0 {
			return fmt.Errorf("%w: received count for %s must not be negative", ErrValidation, c)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findByCode(h.Code); ok {
		return fmt.Errorf("%w: hospital code %s already exists", ErrConflict, h.Code)
	}
	h.TotalReceived = 0
	for _, c := range domain.Categories {
		h.TotalReceived += h.Received[c]
	}
	return s.rows.Put(s.rows.NextIndex(), hospitalToRow(h))
}

// RecordReceipt adds quantity to the hospital's counter for the
// item's category and to the running total, in lockstep. Unknown
// hospital codes and item codes outside the six categories are
// explicit errors.
func (s *HospitalStore) RecordReceipt(code, itemCode string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: receipt quantity must be positive", ErrValidation)
	}
	col := -1
	for i, c := range domain.Categories {
		if c == itemCode {
			col = i
			break
		}
	}
	if col == -1 {
		return fmt.Errorf("%w: item %s is not a hospital supply category", ErrValidation, itemCode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: hospital %s", ErrNotFound, code)
	}
	row, _ := s.rows.Get(index)
	total, err := strconv.Atoi(row[2])
	if err != nil {
		return fmt.Errorf("%w: hospital %s has corrupt total %q", ErrIntegrity, code, row[2])
	}
	count, err := strconv.Atoi(row[3+col])
	if err != nil {
		return fmt.Errorf("%w: hospital %s has corrupt %s counter %q", ErrIntegrity, code, itemCode, row[3+col])
	}
	row[2] = strconv.Itoa(total + quantity)
	row[3+col] = strconv.Itoa(count + quantity)
	return s.rows.Put(index, row)
}

// FindByCode returns the hospital with the given code.
func (s *HospitalStore) FindByCode(code string) (domain.Hospital, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return domain.Hospital{}, fmt.Errorf("%w: hospital %s", ErrNotFound, code)
	}
	row, _ := s.rows.Get(index)
	return hospitalFromRow(row), nil
}

// List returns every hospital in row order.
func (s *HospitalStore) List() []domain.Hospital {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hospitals []domain.Hospital
	for _, i := range s.rows.Indexes() {
		row, _ := s.rows.Get(i)
		if len(row) >= 3+len(domain.Categories)+1 {
			hospitals = append(hospitals, hospitalFromRow(row))
		}
	}
	return hospitals
}

// Names returns hospital display names in row order.
func (s *HospitalStore) Names() []string {
	var names []string
	for _, h := range s.List() {
		names = append(names, h.Name)
	}
	return names
}

// CodeByName resolves a hospital display name to its code.
func (s *HospitalStore) CodeByName(name string) (string, error) {
	for _, h := range s.List() {
		if h.Name == name {
			return h.Code, nil
		}
	}
	return "", fmt.Errorf("%w: hospital named %q", ErrNotFound, name)
}

// NameByCode resolves a hospital code to its display name.
func (s *HospitalStore) NameByCode(code string) (string, error) {
	h, err := s.FindByCode(code)
	if err != nil {
		return "", err
	}
	return h.Name, nil
}

// Update rewrites the named hospital's name and active flag. The
// receipt counters are owned by the coordinator and left untouched.
func (s *HospitalStore) Update(code, name string, active bool) error {
	if err := checkFields(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: hospital %s", ErrNotFound, code)
	}
	row, _ := s.rows.Get(index)
	row[1] = name
	row[len(row)-1] = strconv.FormatBool(active)
	return s.rows.Put(index, row)
}

// Delete removes the named hospital's row.
func (s *HospitalStore) Delete(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: hospital %s", ErrNotFound, code)
	}
	return s.rows.Delete(index)
}

// SetReceived overwrites a hospital's counters from recomputed
// values, restoring total = sum(counters). Used by reconciliation.
func (s *HospitalStore) SetReceived(code string, received map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: hospital %s", ErrNotFound, code)
	}
	row, _ := s.rows.Get(index)
	total := 0
	for i, c := range domain.Categories {
		row[3+i] = strconv.Itoa(received[c])
		total += received[c]
	}
	row[2] = strconv.Itoa(total)
	return s.rows.Put(index, row)
}

func (s *HospitalStore) findByCode(code string) (int, bool) {
	for _, i := range s.rows.Indexes() {
		row, _ := s.rows.Get(i)
		if len(row) >= 2 && row[0] == code {
			return i, true
		}
	}
	return 0, false
}

func hospitalToRow(h domain.Hospital) []string {
	row := []string{h.Code, h.Name, strconv.Itoa(h.TotalReceived)}
	for _, c := range domain.Categories {
		row = append(row, strconv.Itoa(h.Received[c]))
	}
	return append(row, strconv.FormatBool(h.Active))
}

func hospitalFromRow(row []string) domain.Hospital {
	total, _ := strconv.Atoi(row[2])
	h := domain.Hospital{
		Code:          row[0],
		Name:          row[1],
		TotalReceived: total,
		Received:      make(map[string]int, len(domain.Categories)),
		Active:        parseBool(row[len(row)-1]),
	}
	for i, c := range domain.Categories {
		n, _ := strconv.Atoi(row[3+i])
		h.Received[c] = n
	}
	return h
}
