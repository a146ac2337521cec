package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medsupply/m/domain"
	"medsupply/m/internal/store"
)

type fixture struct {
	items        *store.ItemStore
	transactions *store.TransactionStore
	hospitals    *store.HospitalStore
	suppliers    *store.SupplierStore
	coordinator  *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	items, err := store.OpenItems(dir)
	require.NoError(t, err)
	transactions, err := store.OpenTransactions(dir)
	require.NoError(t, err)
	hospitals, err := store.OpenHospitals(dir)
	require.NoError(t, err)
	suppliers, err := store.OpenSuppliers(dir)
	require.NoError(t, err)

	require.NoError(t, suppliers.Add(domain.Supplier{Code: "S1", Name: "Acme Medical", Active: true}))
	require.NoError(t, hospitals.Add(domain.Hospital{Code: "H1", Name: "General", Received: map[string]int{}, Active: true}))
	require.NoError(t, items.Add(domain.Item{Code: "HC", Name: "Head Cover", Quantity: 10, SupplierCode: "S1"}))
	require.NoError(t, items.Add(domain.Item{Code: "GL", Name: "Gloves", Quantity: 0, SupplierCode: "S1"}))

	return &fixture{
		items:        items,
		transactions: transactions,
		hospitals:    hospitals,
		suppliers:    suppliers,
		coordinator:  New(items, transactions, hospitals, suppliers),
	}
}

func TestDistribute(t *testing.T) {
	f := newFixture(t)

	tx, err := f.coordinator.Submit(Request{
		Direction:        domain.Distribute,
		CounterpartyCode: "H1",
		ItemCode:         "HC",
		Quantity:         4,
	})
	require.NoError(t, err)

	// Item stock decreased.
	assert.Equal(t, 6, f.items.Quantity("HC"))

	// Ledger gained exactly one row.
	txs := f.transactions.List()
	require.Len(t, txs, 1)
	assert.Equal(t, tx.ID, txs[0].ID)
	assert.Equal(t, domain.Distribute, txs[0].Direction)
	assert.Equal(t, 4, txs[0].Quantity)

	// Hospital total and the matching category counter moved together.
	h, err := f.hospitals.FindByCode("H1")
	require.NoError(t, err)
	assert.Equal(t, 4, h.Received["HC"])
	assert.Equal(t, 4, h.TotalReceived)
}

func TestDistributeInsufficientStock(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.items.SetQuantity("HC", 5))

	_, err := f.coordinator.Submit(Request{
		Direction:        domain.Distribute,
		CounterpartyCode: "H1",
		ItemCode:         "HC",
		Quantity:         6,
	})
	assert.ErrorIs(t, err, store.ErrIntegrity)

	// Nothing changed anywhere.
	assert.Equal(t, 5, f.items.Quantity("HC"))
	assert.Empty(t, f.transactions.List())
	h, err := f.hospitals.FindByCode("H1")
	require.NoError(t, err)
	assert.Equal(t, 0, h.TotalReceived)
}

func TestReceive(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Submit(Request{
		Direction:        domain.Receive,
		CounterpartyCode: "S1",
		ItemCode:         "GL",
		Quantity:         20,
	})
	require.NoError(t, err)

	assert.Equal(t, 20, f.items.Quantity("GL"))

	txs := f.transactions.List()
	require.Len(t, txs, 1)
	assert.Equal(t, domain.Receive, txs[0].Direction)

	// The supplier/item association was created on first receipt.
	assert.Equal(t, 20, f.suppliers.ReceivedQuantity("S1", "GL"))

	_, err = f.coordinator.Submit(Request{
		Direction:        domain.Receive,
		CounterpartyCode: "S1",
		ItemCode:         "GL",
		Quantity:         5,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, f.suppliers.ReceivedQuantity("S1", "GL"))
}

func TestDistributeRejectsNonCategoryItem(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.items.Add(domain.Item{Code: "XX", Name: "Unlisted Stock", Quantity: 10, SupplierCode: "S1"}))

	_, err := f.coordinator.Submit(Request{
		Direction:        domain.Distribute,
		CounterpartyCode: "H1",
		ItemCode:         "XX",
		Quantity:         4,
	})
	assert.ErrorIs(t, err, store.ErrValidation)

	// The rejection happens before any write: stock untouched, no
	// ledger row, and a follow-up audit is clean.
	assert.Equal(t, 10, f.items.Quantity("XX"))
	assert.Empty(t, f.transactions.List())
	report, err := f.coordinator.Reconcile(false)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Submit(Request{Direction: "Misplace", CounterpartyCode: "H1", ItemCode: "HC", Quantity: 1})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = f.coordinator.Submit(Request{Direction: domain.Distribute, CounterpartyCode: "H1", ItemCode: "HC", Quantity: 0})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = f.coordinator.Submit(Request{Direction: domain.Distribute, CounterpartyCode: "H1", ItemCode: "XX", Quantity: 1})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.coordinator.Submit(Request{Direction: domain.Distribute, CounterpartyCode: "NOPE", ItemCode: "HC", Quantity: 1})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.coordinator.Submit(Request{Direction: domain.Receive, CounterpartyCode: "NOPE", ItemCode: "HC", Quantity: 1})
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Empty(t, f.transactions.List())
	assert.Equal(t, 10, f.items.Quantity("HC"))
}

func TestTransactionIDsIncrease(t *testing.T) {
	f := newFixture(t)

	first, err := f.coordinator.Submit(Request{Direction: domain.Receive, CounterpartyCode: "S1", ItemCode: "GL", Quantity: 5})
	require.NoError(t, err)
	second, err := f.coordinator.Submit(Request{Direction: domain.Distribute, CounterpartyCode: "H1", ItemCode: "GL", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)
}

func TestReconcileCleanState(t *testing.T) {
	f := newFixture(t)
	_, err := f.coordinator.Submit(Request{Direction: domain.Receive, CounterpartyCode: "S1", ItemCode: "GL", Quantity: 20})
	require.NoError(t, err)
	_, err = f.coordinator.Submit(Request{Direction: domain.Distribute, CounterpartyCode: "H1", ItemCode: "GL", Quantity: 8})
	require.NoError(t, err)

	report, err := f.coordinator.Reconcile(false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Transactions)
	assert.Empty(t, report.Drifts)
}

func TestReconcileDetectsAndRepairsDrift(t *testing.T) {
	f := newFixture(t)
	_, err := f.coordinator.Submit(Request{Direction: domain.Distribute, CounterpartyCode: "H1", ItemCode: "HC", Quantity: 4})
	require.NoError(t, err)

	// Simulate a crash between ledger append and aggregate update by
	// zeroing the hospital counters behind the coordinator's back.
	require.NoError(t, f.hospitals.SetReceived("H1", map[string]int{}))

	report, err := f.coordinator.Reconcile(false)
	require.NoError(t, err)
	require.NotEmpty(t, report.Drifts)
	assert.Equal(t, "hospital", report.Drifts[0].Entity)

	report, err = f.coordinator.Reconcile(true)
	require.NoError(t, err)
	assert.True(t, report.Repaired)

	h, err := f.hospitals.FindByCode("H1")
	require.NoError(t, err)
	assert.Equal(t, 4, h.Received["HC"])
	assert.Equal(t, 4, h.TotalReceived)

	// A follow-up audit is clean.
	report, err = f.coordinator.Reconcile(false)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}

func TestReconcileRepairsSupplierDrift(t *testing.T) {
	f := newFixture(t)
	_, err := f.coordinator.Submit(Request{Direction: domain.Receive, CounterpartyCode: "S1", ItemCode: "GL", Quantity: 20})
	require.NoError(t, err)

	require.NoError(t, f.suppliers.SetItems("S1", nil))

	report, err := f.coordinator.Reconcile(true)
	require.NoError(t, err)
	require.NotEmpty(t, report.Drifts)
	assert.Equal(t, 20, f.suppliers.ReceivedQuantity("S1", "GL"))
}
