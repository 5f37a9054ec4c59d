package core

import (
	"encoding/json"
	"testing"
)

func TestOperationUnmarshalShapes(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Operation
	}{
		{
			name: "bare-id refs, english kind",
			in:   `{"id":"op1","kind":"expense","amount":12.34,"description":"coffee","date":"2026-08-31","wallet":"w1","category":"c1"}`,
			want: Operation{
				ID: "op1", Kind: Expense, Amount: Money{Cents: 1234},
				Description: "coffee", Date: NewDate(2026, 8, 31),
				Wallet: NewRef("w1"), Category: NewRef("c1"),
			},
		},
		{
			name: "embedded refs, localized kind, rfc3339 date",
			in:   `{"id":"op2","kind":"Доход","amount":"100.00","date":"2026-08-30T15:04:05Z","wallet":{"id":"w2","name":"Cash","color":"#fff"},"category":{"id":"c2","name":"Salary","kind":"income"}}`,
			want: Operation{
				ID: "op2", Kind: Income, Amount: Money{Cents: 10000},
				Date:   NewDate(2026, 8, 30),
				Wallet: Ref{ID: "w2", Name: "Cash", Color: "#fff"},
				Category: Ref{ID: "c2", Name: "Salary", Kind: "income"},
			},
		},
		{
			name: "malformed date and unknown kind survive",
			in:   `{"id":"op3","kind":"transfer","amount":1,"date":"yesterday-ish"}`,
			want: Operation{ID: "op3", Amount: Money{Cents: 100}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got Operation
			if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestOperationMarshalRoundTrip(t *testing.T) {
	in := Operation{
		ID: "op1", Kind: Expense, Amount: Money{Cents: 1050},
		Description: "lunch", Date: NewDate(2026, 8, 29),
		Wallet: Ref{ID: "w1", Name: "Card"}, Category: NewRef("c9"),
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Operation
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip changed the record:\n in=%+v\nout=%+v", in, out)
	}
}

func TestRefMarshalBareID(t *testing.T) {
	data, err := json.Marshal(NewRef("w1"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"w1"` {
		t.Fatalf("bare ref should marshal as a string, got %s", data)
	}
}
