// Package reports computes inventory summaries from the stores and
// exports ledger snapshots into a SQLite database so downstream
// tooling can query movements without parsing the flat files.
package reports

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"medsupply/m/domain"
	"medsupply/m/internal/store"
)

// Summary is the payload behind GET /reports/summary.
type Summary struct {
	GeneratedAt     time.Time         `json:"generated_at"`
	Transactions    int               `json:"transactions"`
	StockLevels     []domain.Item     `json:"stock_levels"`
	HospitalTotals  []HospitalTotal   `json:"hospital_totals"`
	SupplierTotals  []SupplierTotal   `json:"supplier_totals"`
	MovedByCategory map[string]Volume `json:"moved_by_category"`
}

type HospitalTotal struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	TotalReceived int    `json:"total_received"`
}

type SupplierTotal struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	TotalSupplied int    `json:"total_supplied"`
}

// Volume aggregates ledger movement for one item code.
type Volume struct {
	Distributed int `json:"distributed"`
	Received    int `json:"received"`
}

// Builder reads the stores a summary or export is derived from.
type Builder struct {
	Items        *store.ItemStore
	Suppliers    *store.SupplierStore
	Hospitals    *store.HospitalStore
	Transactions *store.TransactionStore
}

// Summary assembles the current snapshot across all stores.
func (b *Builder) Summary() Summary {
	s := Summary{
		GeneratedAt:     time.Now(),
		StockLevels:     b.Items.List(),
		MovedByCategory: make(map[string]Volume),
	}
	for _, h := range b.Hospitals.List() {
		s.HospitalTotals = append(s.HospitalTotals, HospitalTotal{Code: h.Code, Name: h.Name, TotalReceived: h.TotalReceived})
	}
	for _, sup := range b.Suppliers.List() {
		total := 0
		for _, it := range sup.Items {
			total += it.Quantity
		}
		s.SupplierTotals = append(s.SupplierTotals, SupplierTotal{Code: sup.Code, Name: sup.Name, TotalSupplied: total})
	}
	for _, tx := range b.Transactions.List() {
		s.Transactions++
		v := s.MovedByCategory[tx.ItemCode]
		if tx.Direction == domain.Distribute {
			v.Distributed += tx.Quantity
		} else {
			v.Received += tx.Quantity
		}
		s.MovedByCategory[tx.ItemCode] = v
	}
	return s
}

var exportSchema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY,
		item_code TEXT NOT NULL,
		counterparty_code TEXT NOT NULL,
		direction TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		recorded_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS stock_levels (
		item_code TEXT PRIMARY KEY,
		item_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		supplier_code TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS hospital_receipts (
		hospital_code TEXT NOT NULL,
		category TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		PRIMARY KEY (hospital_code, category)
	);`,
	`CREATE TABLE IF NOT EXISTS supplier_receipts (
		supplier_code TEXT NOT NULL,
		item_code TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		PRIMARY KEY (supplier_code, item_code)
	);`,
}

// Export rewrites the report database at path with the current ledger
// and aggregates. The whole export runs in one SQL transaction.
func (b *Builder) Export(path string) (int, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return 0, fmt.Errorf("reports: open %s: %w", path, err)
	}
	defer db.Close()

	for _, stmt := range exportSchema {
		if _, err := db.Exec(stmt); err != nil {
			return 0, fmt.Errorf("reports: create schema: %w", err)
		}
	}

	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("reports: begin export: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"transactions", "stock_levels", "hospital_receipts", "supplier_receipts"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return 0, fmt.Errorf("reports: reset %s: %w", table, err)
		}
	}

	rows := 0
	for _, t := range b.Transactions.List() {
		if _, err := tx.Exec(`INSERT INTO transactions (id, item_code, counterparty_code, direction, quantity, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, t.ItemCode, t.CounterpartyCode, string(t.Direction), t.Quantity, t.Timestamp.Format(time.RFC3339)); err != nil {
			return 0, fmt.Errorf("reports: insert transaction %d: %w", t.ID, err)
		}
		rows++
	}
	for _, item := range b.Items.List() {
		if _, err := tx.Exec(`INSERT INTO stock_levels (item_code, item_name, quantity, supplier_code) VALUES (?, ?, ?, ?)`,
			item.Code, item.Name, item.Quantity, item.SupplierCode); err != nil {
			return 0, fmt.Errorf("reports: insert stock level %s: %w", item.Code, err)
		}
	}
	for _, h := range b.Hospitals.List() {
		for _, cat := range domain.Categories {
			if _, err := tx.Exec(`INSERT INTO hospital_receipts (hospital_code, category, quantity) VALUES (?, ?, ?)`,
				h.Code, cat, h.Received[cat]); err != nil {
				return 0, fmt.Errorf("reports: insert hospital receipt %s/%s: %w", h.Code, cat, err)
			}
		}
	}
	for _, sup := range b.Suppliers.List() {
		for _, it := range sup.Items {
			if _, err := tx.Exec(`INSERT INTO supplier_receipts (supplier_code, item_code, quantity) VALUES (?, ?, ?)`,
				sup.Code, it.ItemCode, it.Quantity); err != nil {
				return 0, fmt.Errorf("reports: insert supplier receipt %s/%s: %w", sup.Code, it.ItemCode, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("reports: commit export: %w", err)
	}
	return rows, nil
}
