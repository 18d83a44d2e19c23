package domain

import "testing"

func TestCurrenciesAllStartsWithNative(t *testing.T) {
	all := CurrenciesAll()
	if len(all) == 0 || all[0].Code != NativeCurrency {
		t.Fatalf("CurrenciesAll()[0] = %+v, want native first", all)
	}
}

func TestCurrenciesExcludesNative(t *testing.T) {
	all := CurrenciesAll()
	rest := Currencies()
	if len(rest) != len(all)-1 {
		t.Fatalf("len(Currencies()) = %d, want %d", len(rest), len(all)-1)
	}
	for _, c := range rest {
		if c.Code == NativeCurrency {
			t.Errorf("Currencies() contains native currency")
		}
	}
}

func TestCurrenciesAllImmutability(t *testing.T) {
	first := CurrenciesAll()
	first[0].Code = "HACKED"

	if CurrenciesAll()[0].Code != NativeCurrency {
		t.Error("CurrenciesAll() returned a mutable reference to the table")
	}
}
