package domain

// NativeCurrency is the ledger's native currency code.
const NativeCurrency = "XRP"

// Currency is an entry in the static currency reference table.
type Currency struct {
	Code string `json:"value"`
	Name string `json:"name"`
}

// currencyTable is unexported to prevent external mutation. The native
// currency must stay first.
var currencyTable = []Currency{
	{Code: NativeCurrency, Name: "XRP - Ripples"},
	{Code: "USD", Name: "USD - US Dollar"},
	{Code: "EUR", Name: "EUR - Euro"},
	{Code: "BTC", Name: "BTC - Bitcoins"},
	{Code: "GBP", Name: "GBP - British Pound"},
	{Code: "JPY", Name: "JPY - Japanese Yen"},
	{Code: "CNY", Name: "CNY - Chinese Yuan"},
	{Code: "AUD", Name: "AUD - Australian Dollar"},
	{Code: "CAD", Name: "CAD - Canadian Dollar"},
	{Code: "CHF", Name: "CHF - Swiss Franc"},
	{Code: "RUB", Name: "RUB - Russian Ruble"},
	{Code: "INR", Name: "INR - Indian Rupee"},
	{Code: "XAU", Name: "XAU - Ounces of Gold"},
	{Code: "XAG", Name: "XAG - Ounces of Silver"},
}

// CurrenciesAll returns a copy of the full currency table, native first.
func CurrenciesAll() []Currency {
	out := make([]Currency, len(currencyTable))
	copy(out, currencyTable)
	return out
}

// Currencies returns the table without the native currency.
func Currencies() []Currency {
	return CurrenciesAll()[1:]
}
