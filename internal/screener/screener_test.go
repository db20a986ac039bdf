package screener

import (
	"testing"

	"github.com/dvloznov/securebank/internal/domain"
	"github.com/shopspring/decimal"
)

func tx(counterparty, note, amount string) domain.Transaction {
	return domain.NewTransaction(domain.DirectionOutgoing, counterparty, decimal.RequireFromString(amount), note)
}

func TestScreen(t *testing.T) {
	s := New(Config{})

	tests := []struct {
		name       string
		tx         domain.Transaction
		suspicious bool
	}{
		{"small utility bill", tx("555-Electric", "utility bill", "45.00"), false},
		{"exactly at threshold", tx("landlord", "rent", "50000"), false},
		{"just above threshold", tx("landlord", "rent", "50000.01"), true},
		{"large amount clean note", tx("Employer", "bonus refund", "90000"), true},
		{"negative large amount", tx("landlord", "", "-60000"), true},
		{"keyword in note lower", tx("friend", "crypto investment", "10"), true},
		{"keyword in note upper", tx("friend", "CRYPTO", "10"), true},
		{"keyword in note mixed", tx("friend", "Crypto", "10"), true},
		{"keyword in counterparty", tx("Lucky Casino Ltd", "", "10"), true},
		{"multi-word keyword", tx("Louis Vuitton Store", "", "10"), true},
		{"keyword as substring", tx("sportsbetting.example", "", "10"), true},
		{"no fuzzy match", tx("cryp to", "lotery", "10"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Screen(tt.tx)
			if got.Suspicious != tt.suspicious {
				t.Errorf("Screen() suspicious = %v, want %v (reasons %v)", got.Suspicious, tt.suspicious, got.Reasons)
			}
			if got.Suspicious && len(got.Reasons) == 0 {
				t.Error("suspicious result must carry a reason")
			}
		})
	}
}

func TestScreenLargeAmountIgnoresDescription(t *testing.T) {
	s := New(Config{})
	notes := []string{"", "groceries", "rent for march", "gift"}
	for _, n := range notes {
		for _, amt := range []string{"50001", "123456.78", "1000000"} {
			if !s.Screen(tx("anyone", n, amt)).Suspicious {
				t.Errorf("amount %s with note %q must be suspicious", amt, n)
			}
		}
	}
}

func TestCustomConfig(t *testing.T) {
	s := New(Config{
		AmountThreshold: decimal.NewFromInt(100),
		Keywords:        []string{"  Wire  ", ""},
	})

	if !s.Screen(tx("x", "", "100.5")).Suspicious {
		t.Error("expected custom threshold to apply")
	}
	if !s.Screen(tx("x", "WIRE transfer", "1")).Suspicious {
		t.Error("expected custom keyword to match case-insensitively")
	}
	if s.Screen(tx("x", "casino", "1")).Suspicious {
		t.Error("default keywords must not apply when custom ones are set")
	}
}

func TestScan(t *testing.T) {
	s := New(Config{})
	a := tx("shop", "groceries", "20")
	b := tx("bet365", "betting", "20")
	c := tx("friend", "", "75000")

	ids := s.Scan([]domain.Transaction{a, b, c})
	if len(ids) != 2 || ids[0] != b.ID || ids[1] != c.ID {
		t.Errorf("Scan() = %v, want [%s %s]", ids, b.ID, c.ID)
	}
	if got := s.Scan(nil); got == nil || len(got) != 0 {
		t.Errorf("Scan(nil) = %v, want empty slice", got)
	}
}
