package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON-backed columns (jsonb in Postgres).

type Variants []Variant

func (v *Variants) Scan(src interface{}) error { return scanJSON(src, v) }
func (v Variants) Value() (driver.Value, error) { return valueJSON(v, "[]") }

type AddOns []AddOn

func (a *AddOns) Scan(src interface{}) error { return scanJSON(src, a) }
func (a AddOns) Value() (driver.Value, error) { return valueJSON(a, "[]") }

type SelectedAddOns []SelectedAddOn

func (a *SelectedAddOns) Scan(src interface{}) error { return scanJSON(src, a) }
func (a SelectedAddOns) Value() (driver.Value, error) { return valueJSON(a, "[]") }

func (v *SelectedVariant) Scan(src interface{}) error { return scanJSON(src, v) }
func (v SelectedVariant) Value() (driver.Value, error) { return valueJSON(v, "null") }

type BillItems []BillItem

func (b *BillItems) Scan(src interface{}) error { return scanJSON(src, b) }
func (b BillItems) Value() (driver.Value, error) { return valueJSON(b, "[]") }

type PaymentSummaries []PaymentMethodSummary

func (p *PaymentSummaries) Scan(src interface{}) error { return scanJSON(src, p) }
func (p PaymentSummaries) Value() (driver.Value, error) { return valueJSON(p, "[]") }

type FeedbackCategories []FeedbackCategory

func (f *FeedbackCategories) Scan(src interface{}) error { return scanJSON(src, f) }
func (f FeedbackCategories) Value() (driver.Value, error) { return valueJSON(f, "[]") }

func scanJSON(src interface{}, dest interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dest)
	case string:
		return json.Unmarshal([]byte(data), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}

func valueJSON(v interface{}, empty string) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// lib/pq sends []byte as bytea, so jsonb parameters go over the wire as text.
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}
