package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medsupply/m/domain"
)

func openTestItems(t *testing.T) (*ItemStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenItems(dir)
	require.NoError(t, err)
	return s, dir
}

func TestItemAddAndFind(t *testing.T) {
	s, _ := openTestItems(t)

	require.NoError(t, s.Add(domain.Item{Code: "HC", Name: "Head Cover", Quantity: 10, SupplierCode: "S1"}))

	item, err := s.FindByCode("HC")
	require.NoError(t, err)
	assert.Equal(t, "Head Cover", item.Name)
	assert.Equal(t, 10, item.Quantity)

	byName, err := s.FindByName("Head Cover")
	require.NoError(t, err)
	assert.Equal(t, "HC", byName.Code)

	code, err := s.CodeByName("Head Cover")
	require.NoError(t, err)
	assert.Equal(t, "HC", code)

	name, err := s.NameByCode("HC")
	require.NoError(t, err)
	assert.Equal(t, "Head Cover", name)
}

func TestItemAddRejectsDuplicateCode(t *testing.T) {
	s, _ := openTestItems(t)
	require.NoError(t, s.Add(domain.Item{Code: "HC", Name: "Head Cover", SupplierCode: "S1"}))

	err := s.Add(domain.Item{Code: "HC", Name: "Other", SupplierCode: "S2"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestItemAddRejectsDelimiterInFields(t *testing.T) {
	s, _ := openTestItems(t)
	err := s.Add(domain.Item{Code: "HC", Name: "Head,Cover", SupplierCode: "S1"})
	assert.ErrorIs(t, err, ErrValidation)

	// Item codes flow into supplier packed lists, so they also
	// reserve the packed-list separators.
	err = s.Add(domain.Item{Code: "H;C", Name: "Head Cover", SupplierCode: "S1"})
	assert.ErrorIs(t, err, ErrValidation)
	err = s.Add(domain.Item{Code: "H:C", Name: "Head Cover", SupplierCode: "S1"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAdjustQuantity(t *testing.T) {
	s, dir := openTestItems(t)
	require.NoError(t, s.Add(domain.Item{Code: "HC", Name: "Head Cover", Quantity: 10, SupplierCode: "S1"}))

	require.NoError(t, s.AdjustQuantity("HC", -4))
	assert.Equal(t, 6, s.Quantity("HC"))

	require.NoError(t, s.AdjustQuantity("HC", 3))
	assert.Equal(t, 9, s.Quantity("HC"))

	// Persisted, not just in memory.
	reopened, err := OpenItems(dir)
	require.NoError(t, err)
	assert.Equal(t, 9, reopened.Quantity("HC"))
}

func TestAdjustQuantityRejectsNegativeResult(t *testing.T) {
	s, dir := openTestItems(t)
	require.NoError(t, s.Add(domain.Item{Code: "HC", Name: "Head Cover", Quantity: 5, SupplierCode: "S1"}))

	err := s.AdjustQuantity("HC", -6)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, 5, s.Quantity("HC"))

	// The failed adjustment must not have been persisted either.
	reopened, err2 := OpenItems(dir)
	require.NoError(t, err2)
	assert.Equal(t, 5, reopened.Quantity("HC"))
}

func TestAdjustQuantityUnknownItem(t *testing.T) {
	s, _ := openTestItems(t)
	assert.ErrorIs(t, s.AdjustQuantity("XX", 1), ErrNotFound)
}

func TestItemListSkipsHeaderAndKeepsOrder(t *testing.T) {
	s, _ := openTestItems(t)
	require.NoError(t, s.Add(domain.Item{Code: "HC", Name: "Head Cover", SupplierCode: "S1"}))
	require.NoError(t, s.Add(domain.Item{Code: "FS", Name: "Face Shield", SupplierCode: "S1"}))
	require.NoError(t, s.Add(domain.Item{Code: "GL", Name: "Gloves", SupplierCode: "S2"}))

	items := s.List()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"Head Cover", "Face Shield", "Gloves"}, s.Names())
}

func TestItemRoundTripAcrossReload(t *testing.T) {
	s, dir := openTestItems(t)
	require.NoError(t, s.Add(domain.Item{Code: "HC", Name: "Head Cover", Quantity: 7, SupplierCode: "S1"}))
	require.NoError(t, s.Add(domain.Item{Code: "GW", Name: "Gown", Quantity: 2, SupplierCode: "S2"}))

	reopened, err := OpenItems(dir)
	require.NoError(t, err)
	assert.Equal(t, s.List(), reopened.List())
}

func TestItemDelete(t *testing.T) {
	s, _ := openTestItems(t)
	require.NoError(t, s.Add(domain.Item{Code: "HC", Name: "Head Cover", SupplierCode: "S1"}))
	require.NoError(t, s.Delete("HC"))

	_, err := s.FindByCode("HC")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("HC"), ErrNotFound)
}

func TestItemUpdatePreservesCode(t *testing.T) {
	s, _ := openTestItems(t)
	require.NoError(t, s.Add(domain.Item{Code: "HC", Name: "Head Cover", Quantity: 3, SupplierCode: "S1"}))

	require.NoError(t, s.Update("HC", domain.Item{Name: "Head Covers", Quantity: 4, SupplierCode: "S2"}))
	item, err := s.FindByCode("HC")
	require.NoError(t, err)
	assert.Equal(t, "Head Covers", item.Name)
	assert.Equal(t, 4, item.Quantity)
	assert.Equal(t, "S2", item.SupplierCode)
}
