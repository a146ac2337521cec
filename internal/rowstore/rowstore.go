// Package rowstore provides the flat-file persistence primitive the
// table stores are built on: a durable mapping from integer row index
// to an ordered record of string fields, one file per table.
package rowstore

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Delimiter joins the fields of a record on disk. Field values must
// not contain it; the format has no escaping.
const Delimiter = ","

// Store maps row indices to records for one named table. Row indices
// are assigned by the table owner; after deletes the index space may
// have gaps, so index never equals line number in general. Store is
// not goroutine-safe; each table store serializes access with its
// own mutex.
type Store struct {
	path string
	rows map[int][]string
}

// Open loads the backing file for the named table under dir. A
// missing file is created empty. An unreadable file is treated as an
// empty table with a logged warning rather than a fatal error.
func Open(dir, name string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rowstore: create data dir: %w", err)
	}
	s := &Store{path: filepath.Join(dir, name), rows: make(map[int][]string)}
	if err := s.load(); err != nil {
		log.Printf("rowstore: unable to read %s, starting empty: %v", s.path, err)
	}
	return s, nil
}

func (s *Store) load() error {
	file, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return s.Save()
	}
	if err != nil {
		return err
	}
	defer file.Close()

	rows := make(map[int][]string)
	scanner := bufio.NewScanner(file)
	row := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		rows[row] = strings.Split(line, Delimiter)
		row++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	s.rows = rows
	return nil
}

// Reload discards in-memory state and re-reads the backing file.
func (s *Store) Reload() error {
	return s.load()
}

// Get returns the record at index.
func (s *Store) Get(index int) ([]string, bool) {
	rec, ok := s.rows[index]
	return rec, ok
}

// Entries exposes the live row map. Callers iterate it via Indexes
// when order matters.
func (s *Store) Entries() map[int][]string {
	return s.rows
}

// Len reports the number of live rows.
func (s *Store) Len() int {
	return len(s.rows)
}

// NextIndex returns the index a new row should be appended at: one
// past the highest live index, so deleted indices are never reused.
func (s *Store) NextIndex() int {
	next := 0
	for i := range s.rows {
		if i >= next {
			next = i + 1
		}
	}
	return next
}

// Indexes returns the live row indices in ascending order.
func (s *Store) Indexes() []int {
	out := make([]int, 0, len(s.rows))
	for i := range s.rows {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Put inserts or overwrites the record at index and persists the
// whole table.
func (s *Store) Put(index int, record []string) error {
	if index < 0 {
		return fmt.Errorf("rowstore: negative row index %d", index)
	}
	s.rows[index] = record
	return s.Save()
}

// Delete removes the row at index and persists. Remaining rows keep
// their indices.
func (s *Store) Delete(index int) error {
	delete(s.rows, index)
	return s.Save()
}

// Save rewrites the backing file: every live record in ascending
// index order, one per line, fields joined by the delimiter. The
// rewrite goes through a temp file and rename so a crash never leaves
// a half-written table.
func (s *Store) Save() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("rowstore: create temp file: %w", err)
	}
	writer := bufio.NewWriter(tmp)
	for _, i := range s.Indexes() {
		if _, err := writer.WriteString(strings.Join(s.rows[i], Delimiter) + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("rowstore: write %s: %w", s.path, err)
		}
	}
	if err := writer.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("rowstore: flush %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rowstore: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rowstore: replace %s: %w", s.path, err)
	}
	return nil
}
