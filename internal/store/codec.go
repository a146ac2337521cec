package store

import (
	"fmt"
	"strconv"
	"strings"

	"medsupply/m/domain"
	"medsupply/m/internal/rowstore"
)

// Packed supplier item list: entries joined by ';', item code and
// quantity joined by ':'. Nested inside a single comma-delimited
// field, so three characters are reserved in total.
const (
	itemEntrySep = ";"
	itemPairSep  = ":"
)

// checkFields rejects field values that would corrupt the flat-file
// format. The format has no escaping, so the record delimiter may not
// appear in any value.
func checkFields(values ...string) error {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: empty field", ErrValidation)
		}
		if strings.Contains(v, rowstore.Delimiter) {
			return fmt.Errorf("%w: field %q contains a reserved delimiter", ErrValidation, v)
		}
	}
	return nil
}

// checkItemCode additionally reserves the packed-list separators.
// Item codes end up inside supplier packed-items fields, where ';'
// and ':' carry structure; other fields may contain them freely.
func checkItemCode(code string) error {
	if err := checkFields(code); err != nil {
		return err
	}
	if strings.ContainsAny(code, itemEntrySep+itemPairSep) {
		return fmt.Errorf("%w: item code %q contains a reserved delimiter", ErrValidation, code)
	}
	return nil
}

// encodeSupplierItems packs the per-item received quantities into a
// single field, e.g. "HC:20;GL:5;".
func encodeSupplierItems(items []domain.SupplierItem) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.ItemCode)
		b.WriteString(itemPairSep)
		b.WriteString(strconv.Itoa(it.Quantity))
		b.WriteString(itemEntrySep)
	}
	return b.String()
}

// decodeSupplierItems unpacks the field written by
// encodeSupplierItems. Malformed pairs are dropped rather than
// failing the whole record.
func decodeSupplierItems(packed string) []domain.SupplierItem {
	var items []domain.SupplierItem
	for _, entry := range strings.Split(packed, itemEntrySep) {
		if entry == "" {
			continue
		}
		code, qty, ok := strings.Cut(entry, itemPairSep)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(qty)
		if err != nil {
			continue
		}
		items = append(items, domain.SupplierItem{ItemCode: code, Quantity: n})
	}
	return items
}

func parseBool(raw string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && b
}
