// Package ledger applies a single distribute/receive action as
// dependent writes across the item, transaction and counterparty
// stores, and provides the reconciliation pass that audits the
// aggregates against the append-only ledger.
package ledger

import (
	"fmt"
	"log"
	"sync"

	"medsupply/m/domain"
	"medsupply/m/internal/store"
)

// Request describes one user-level stock movement.
type Request struct {
	Direction        domain.Direction `json:"direction"`
	CounterpartyCode string           `json:"counterparty_code"`
	ItemCode         string           `json:"item_code"`
	Quantity         int              `json:"quantity"`
}

// Coordinator is the only component that reasons about all tables at
// once. Its mutex serializes whole actions so the fixed store
// acquisition order (item, then ledger, then counterparty) can never
// interleave across concurrent submissions.
type Coordinator struct {
	mu           sync.Mutex
	items        *store.ItemStore
	transactions *store.TransactionStore
	hospitals    *store.HospitalStore
	suppliers    *store.SupplierStore
}

// New builds a Coordinator over the four stores it writes.
func New(items *store.ItemStore, transactions *store.TransactionStore, hospitals *store.HospitalStore, suppliers *store.SupplierStore) *Coordinator {
	return &Coordinator{items: items, transactions: transactions, hospitals: hospitals, suppliers: suppliers}
}

// Submit validates and applies one stock movement:
//
//  1. validate the item, counterparty and quantity (including the
//     available-stock check for distributions);
//  2. adjust the item quantity; this runs before the ledger append
//     so a failed stock guard never leaves an orphan ledger row;
//  3. append the ledger record;
//  4. update the counterparty aggregate.
//
// Each step persists independently; there is no multi-table atomic
// commit. A crash between steps 3 and 4 leaves the ledger ahead of
// the aggregates, which Reconcile detects.
func (c *Coordinator) Submit(req Request) (domain.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !req.Direction.Valid() {
		return domain.Transaction{}, fmt.Errorf("%w: direction must be %s or %s", store.ErrValidation, domain.Distribute, domain.Receive)
	}
	if req.Quantity <= 0 {
		return domain.Transaction{}, fmt.Errorf("%w: quantity must be greater than zero", store.ErrValidation)
	}
	item, err := c.items.FindByCode(req.ItemCode)
	if err != nil {
		return domain.Transaction{}, err
	}

	delta := req.Quantity
	if req.Direction == domain.Distribute {
		delta = -req.Quantity
		if !domain.IsCategory(req.ItemCode) {
			return domain.Transaction{}, fmt.Errorf("%w: item %s is not a hospital supply category", store.ErrValidation, req.ItemCode)
		}
		if _, err := c.hospitals.FindByCode(req.CounterpartyCode); err != nil {
			return domain.Transaction{}, err
		}
		if req.Quantity > item.Quantity {
			return domain.Transaction{}, fmt.Errorf("%w: insufficient stock for %s, available %d", store.ErrIntegrity, req.ItemCode, item.Quantity)
		}
	} else {
		if _, err := c.suppliers.FindByCode(req.CounterpartyCode); err != nil {
			return domain.Transaction{}, err
		}
	}

	if err := c.items.AdjustQuantity(req.ItemCode, delta); err != nil {
		return domain.Transaction{}, err
	}

	tx, err := c.transactions.Append(domain.Transaction{
		ItemCode:         req.ItemCode,
		CounterpartyCode: req.CounterpartyCode,
		Direction:        req.Direction,
		Quantity:         req.Quantity,
	})
	if err != nil {
		// Roll the stock adjustment back so a ledger write failure
		// leaves no observable change.
		if rbErr := c.items.AdjustQuantity(req.ItemCode, -delta); rbErr != nil {
			log.Printf("ledger: rollback of item %s failed after append error: %v", req.ItemCode, rbErr)
		}
		return domain.Transaction{}, err
	}

	if req.Direction == domain.Distribute {
		err = c.hospitals.RecordReceipt(req.CounterpartyCode, req.ItemCode, req.Quantity)
	} else {
		err = c.suppliers.RecordReceipt(req.CounterpartyCode, req.ItemCode, req.Quantity)
	}
	if err != nil {
		// Ledger row exists but the aggregate update failed. The gap
		// is surfaced rather than hidden; Reconcile repairs it.
		return tx, fmt.Errorf("transaction %d recorded but counterparty update failed (run reconcile): %w", tx.ID, err)
	}
	return tx, nil
}

// Drift describes one aggregate value that disagrees with the ledger.
type Drift struct {
	Entity   string `json:"entity"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
}

// Report summarizes one reconciliation pass.
type Report struct {
	Transactions int     `json:"transactions"`
	Drifts       []Drift `json:"drifts"`
	Repaired     bool    `json:"repaired"`
}

// Reconcile recomputes counterparty aggregates from the full ledger
// and compares them with the stored values. Hospital counters and
// supplier receipt totals derive entirely from ledger rows (entities
// are created with zero counters), so when repair is set they are
// rewritten from the ledger. Item stock also reflects non-ledger
// baselines (initial quantities at creation), so stock drift is
// reported but never rewritten.
func (c *Coordinator) Reconcile(repair bool) (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	txs := c.transactions.List()
	report := Report{Transactions: len(txs)}

	hospitalReceived := make(map[string]map[string]int)
	supplierReceived := make(map[string]map[string]int)
	for _, tx := range txs {
		switch tx.Direction {
		case domain.Distribute:
			m := hospitalReceived[tx.CounterpartyCode]
			if m == nil {
				m = make(map[string]int)
				hospitalReceived[tx.CounterpartyCode] = m
			}
			m[tx.ItemCode] += tx.Quantity
		case domain.Receive:
			m := supplierReceived[tx.CounterpartyCode]
			if m == nil {
				m = make(map[string]int)
				supplierReceived[tx.CounterpartyCode] = m
			}
			m[tx.ItemCode] += tx.Quantity
		}
	}

	for _, h := range c.hospitals.List() {
		expected := hospitalReceived[h.Code]
		dirty := false
		for _, cat := range domain.Categories {
			if h.Received[cat] != expected[cat] {
				report.Drifts = append(report.Drifts, Drift{
					Entity: "hospital", Code: h.Code,
					Detail:   fmt.Sprintf("category %s receipts", cat),
					Expected: expected[cat], Actual: h.Received[cat],
				})
				dirty = true
			}
		}
		sum := 0
		for _, cat := range domain.Categories {
			sum += h.Received[cat]
		}
		if h.TotalReceived != sum {
			report.Drifts = append(report.Drifts, Drift{
				Entity: "hospital", Code: h.Code,
				Detail:   "total out of lockstep with category counters",
				Expected: sum, Actual: h.TotalReceived,
			})
			dirty = true
		}
		if repair && dirty {
			if err := c.hospitals.SetReceived(h.Code, expected); err != nil {
				return report, err
			}
		}
	}

	for _, sup := range c.suppliers.List() {
		expected := supplierReceived[sup.Code]
		actual := make(map[string]int, len(sup.Items))
		for _, it := range sup.Items {
			actual[it.ItemCode] = it.Quantity
		}
		dirty := false
		for code, want := range expected {
			if actual[code] != want {
				report.Drifts = append(report.Drifts, Drift{
					Entity: "supplier", Code: sup.Code,
					Detail:   fmt.Sprintf("item %s receipts", code),
					Expected: want, Actual: actual[code],
				})
				dirty = true
			}
		}
		for code, have := range actual {
			if _, ok := expected[code]; !ok && have != 0 {
				report.Drifts = append(report.Drifts, Drift{
					Entity: "supplier", Code: sup.Code,
					Detail:   fmt.Sprintf("item %s receipts", code),
					Expected: 0, Actual: have,
				})
				dirty = true
			}
		}
		if repair && dirty {
			var items []domain.SupplierItem
			for _, cat := range domain.Categories {
				if qty, ok := expected[cat]; ok {
					items = append(items, domain.SupplierItem{ItemCode: cat, Quantity: qty})
				}
			}
			for code, qty := range expected {
				known := false
				for _, cat := range domain.Categories {
					if cat == code {
						known = true
						break
					}
				}
				if !known {
					items = append(items, domain.SupplierItem{ItemCode: code, Quantity: qty})
				}
			}
			if err := c.suppliers.SetItems(sup.Code, items); err != nil {
				return report, err
			}
		}
	}

	// Net ledger movement per item, reported against current stock.
	movement := make(map[string]int)
	for _, tx := range txs {
		if tx.Direction == domain.Receive {
			movement[tx.ItemCode] += tx.Quantity
		} else {
			movement[tx.ItemCode] -= tx.Quantity
		}
	}
	for _, item := range c.items.List() {
		if net, ok := movement[item.Code]; ok && item.Quantity < net {
			// Stock below net receipts means a movement was lost or
			// applied twice; positive baselines make stock > net
			// legitimate, so only this direction is flagged.
			report.Drifts = append(report.Drifts, Drift{
				Entity: "item", Code: item.Code,
				Detail:   "stock below net ledger movement",
				Expected: net, Actual: item.Quantity,
			})
		}
	}

	report.Repaired = repair
	return report, nil
}
