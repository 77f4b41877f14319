package query

import (
	"testing"
	"time"
)

func TestEmptyFilterRendersNoPredicate(t *testing.T) {
	where, args, err := FilterSpec{}.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if where != "" || len(args) != 0 {
		t.Fatalf("expected empty predicate, got where=%q args=%v", where, args)
	}
}

func TestAmountRangeFlipsSign(t *testing.T) {
	min, max := 10.0, 50.0
	f := FilterSpec{AmountMin: &min, AmountMax: &max}
	where, args, err := f.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if where != "amount <= ? AND amount >= ?" {
		t.Fatalf("unexpected where clause: %q", where)
	}
	if len(args) != 2 || args[0] != -10.0 || args[1] != -50.0 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestMerchantRendersLike(t *testing.T) {
	f := FilterSpec{Merchant: "食堂"}
	where, args, err := f.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if where != `merchant LIKE '%' || ? || '%'` {
		t.Fatalf("unexpected where clause: %q", where)
	}
	if len(args) != 1 || args[0] != "食堂" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestInvalidTimeStartIsValidationError(t *testing.T) {
	f := FilterSpec{TimeStart: "not-a-date"}
	if _, _, err := f.Render(); err == nil {
		t.Fatal("expected an error for malformed time_start")
	}
}

type fakeRow struct {
	merchant string
	amount   float64
}

func (r fakeRow) MatchMerchant() string   { return r.merchant }
func (r fakeRow) MatchAmount() float64    { return r.amount }
func (r fakeRow) MatchTime() time.Time    { return time.Time{} }

func TestMatchHonorsAmountBounds(t *testing.T) {
	min, max := 10.0, 50.0
	f := FilterSpec{AmountMin: &min, AmountMax: &max}

	cases := []struct {
		amount float64
		want   bool
	}{
		{-5, false},
		{-15, true},
		{-60, false},
		{-10, true},
		{-50, true},
	}
	for _, c := range cases {
		got := Match(f, fakeRow{merchant: "x", amount: c.amount})
		if got != c.want {
			t.Errorf("amount %v: got %v want %v", c.amount, got, c.want)
		}
	}
}
