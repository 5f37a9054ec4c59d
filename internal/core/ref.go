package core

import (
	"encoding/json"
	"strings"
)

// Ref is a reference to a wallet or category. Source records carry it either
// as a bare id string or as an embedded object with display fields; both
// shapes land in the same struct so call sites resolve it exactly one way.
type Ref struct {
	ID    string
	Name  string
	Color string
	Icon  string
	Kind  string
}

// refObject is the embedded-object wire shape of a reference.
type refObject struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// NewRef creates a bare-id reference.
func NewRef(id string) Ref {
	return Ref{ID: id}
}

// IsZero reports whether the reference points at nothing.
func (r Ref) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

// Matches reports whether the reference resolves to the given id. A zero
// reference matches nothing; filtering on a missing reference must not let a
// record slip through.
func (r Ref) Matches(id string) bool {
	return r.ID != "" && r.ID == id
}

// DisplayName returns the embedded display name, if the source supplied one.
func (r Ref) DisplayName() string {
	return strings.TrimSpace(r.Name)
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Name == "" && r.Color == "" && r.Icon == "" && r.Kind == "" {
		return json.Marshal(r.ID)
	}
	return json.Marshal(refObject{ID: r.ID, Name: r.Name, Color: r.Color, Icon: r.Icon, Kind: r.Kind})
}

// UnmarshalJSON accepts "w1", {"id":"w1",...} or null. Anything else leaves
// the reference zero rather than failing the whole record.
func (r *Ref) UnmarshalJSON(data []byte) error {
	*r = Ref{}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		r.ID = id
		return nil
	}
	var obj refObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	r.ID = obj.ID
	r.Name = obj.Name
	r.Color = obj.Color
	r.Icon = obj.Icon
	r.Kind = obj.Kind
	return nil
}
