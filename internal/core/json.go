// JSON boundary for the domain model. The external store is lenient in what
// it emits: kinds arrive as English or localized tokens, references as bare
// ids or embedded objects, and dates occasionally malformed. Normalization
// happens here once; a single bad field never fails the whole record.

package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON accepts YYYY-MM-DD or RFC 3339. A malformed date leaves the
// zero value: the record survives, sorts last and matches only AllTime.
func (d *Date) UnmarshalJSON(data []byte) error {
	*d = Date{}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = DateOf(t)
	}
	return nil
}

type operationWire struct {
	ID          string      `json:"id,omitempty"`
	Kind        string      `json:"kind"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description,omitempty"`
	Date        Date        `json:"date"`
	Wallet      Ref         `json:"wallet,omitempty"`
	Category    Ref         `json:"category,omitempty"`
}

func (o Operation) MarshalJSON() ([]byte, error) {
	cents := o.Amount.Cents
	return json.Marshal(operationWire{
		ID:          o.ID,
		Kind:        string(o.Kind),
		Amount:      json.Number(fmt.Sprintf("%d.%02d", cents/100, cents%100)),
		Description: o.Description,
		Date:        o.Date,
		Wallet:      o.Wallet,
		Category:    o.Category,
	})
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	var w operationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = Operation{
		ID:          w.ID,
		Description: w.Description,
		Date:        w.Date,
		Wallet:      w.Wallet,
		Category:    w.Category,
	}
	// Unknown kind tokens leave the field empty; validation rejects the
	// record at commit but aggregation still counts it.
	if k, err := ParseKind(w.Kind); err == nil {
		o.Kind = k
	}
	if w.Amount != "" {
		if cents, err := ParseDecimalToCents(w.Amount.String()); err == nil {
			o.Amount = Money{Cents: cents}
		}
	}
	return nil
}
