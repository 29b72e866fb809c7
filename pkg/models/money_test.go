package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1 234,56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"-150.00", "-150.00"},
		{"+5 000,00 PLN", "5000.00"},
		{"-800,00 zł", "-800.00"},
		{"0,01", "0.01"},
		{"12 345 678,90", "12345678.90"},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if err != nil {
			t.Errorf("ParseAmount(%q): %v", tt.in, err)
			continue
		}
		if got.StringFixed(2) != tt.want {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got.StringFixed(2), tt.want)
		}
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "PLN", "-", "abc"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) succeeded, want error", in)
		}
	}
}

func TestWithinTolerance(t *testing.T) {
	a := decimal.RequireFromString("100.00")
	if !WithinTolerance(a, decimal.RequireFromString("100.02")) {
		t.Error("100.00 vs 100.02 should be within tolerance")
	}
	if WithinTolerance(a, decimal.RequireFromString("100.03")) {
		t.Error("100.00 vs 100.03 should be out of tolerance")
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-05", "2024-01-05"},
		{"05.01.2024", "2024-01-05"},
		{"05-01-24", "2024-01-05"},
		{"05/01/2024", "2024-01-05"},
	}
	for _, tt := range tests {
		got, err := NormalizeDate(tt.in)
		if err != nil {
			t.Errorf("NormalizeDate(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeDate(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if _, err := NormalizeDate("32.13.2024"); err == nil {
		t.Error("NormalizeDate accepted an impossible date")
	}
}

func TestMonthKey(t *testing.T) {
	if got := MonthKey("2024-01-05"); got != "2024-01" {
		t.Errorf("MonthKey = %q", got)
	}
	if got := MonthKey("garbage"); got != "unknown" {
		t.Errorf("MonthKey(garbage) = %q", got)
	}
}

func TestDirectionMatchesSign(t *testing.T) {
	credit := RawTransaction{Amount: decimal.RequireFromString("5000.00")}
	if credit.Direction() != DirectionCredit {
		t.Error("positive amount should be CREDIT")
	}
	zero := RawTransaction{Amount: decimal.Zero}
	if zero.Direction() != DirectionCredit {
		t.Error("zero amount should be CREDIT")
	}
	debit := RawTransaction{Amount: decimal.RequireFromString("-150.00")}
	if debit.Direction() != DirectionDebit {
		t.Error("negative amount should be DEBIT")
	}
}
