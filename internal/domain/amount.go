package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an amount value cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a currency-typed value. Issuer is empty for the native currency
// and for amounts parsed without issuer context.
type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
	Issuer   string          `json:"issuer,omitempty"`
}

// IsNative reports whether the amount is denominated in the native currency.
func (a Amount) IsNative() bool {
	return a.Currency == NativeCurrency
}

// String renders the amount as "VALUE CURRENCY".
func (a Amount) String() string {
	return a.Value.String() + " " + a.Currency
}

// AmountParser turns a bare value plus currency into an Amount.
type AmountParser interface {
	ParseAmount(value, currency string) (Amount, error)
}

// DecimalParser is the default AmountParser backed by shopspring/decimal.
type DecimalParser struct{}

// ParseAmount implements AmountParser.
func (DecimalParser) ParseAmount(value, currency string) (Amount, error) {
	if value == "" {
		return Amount{}, fmt.Errorf("%w: empty value for %s", ErrInvalidAmount, currency)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q for %s", ErrInvalidAmount, value, currency)
	}
	return Amount{Value: d, Currency: currency}, nil
}

// issuedAmount is the wire shape of a non-native amount.
type issuedAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
	Issuer   string `json:"issuer"`
}

// AmountFromJSON decodes a ledger amount: a drops string for the native
// currency or a {value, currency, issuer} object.
func AmountFromJSON(raw json.RawMessage) (Amount, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Amount{}, fmt.Errorf("%w: missing", ErrInvalidAmount)
	}

	var drops string
	if err := json.Unmarshal(raw, &drops); err == nil {
		v, err := DropsToNative(drops)
		if err != nil {
			return Amount{}, err
		}
		return Amount{Value: v, Currency: NativeCurrency}, nil
	}

	var issued issuedAmount
	if err := json.Unmarshal(raw, &issued); err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return issuedFrom(issued)
}

// AmountFromValue converts an already-decoded JSON value (string or
// map[string]any) into an Amount. Metadata fields arrive in this form.
func AmountFromValue(v any) (Amount, error) {
	switch t := v.(type) {
	case string:
		d, err := DropsToNative(t)
		if err != nil {
			return Amount{}, err
		}
		return Amount{Value: d, Currency: NativeCurrency}, nil
	case map[string]any:
		value, _ := t["value"].(string)
		currency, _ := t["currency"].(string)
		issuer, _ := t["issuer"].(string)
		return issuedFrom(issuedAmount{Value: value, Currency: currency, Issuer: issuer})
	default:
		return Amount{}, fmt.Errorf("%w: unexpected type %T", ErrInvalidAmount, v)
	}
}

func issuedFrom(a issuedAmount) (Amount, error) {
	if a.Currency == "" {
		return Amount{}, fmt.Errorf("%w: missing currency", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(a.Value)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q for %s", ErrInvalidAmount, a.Value, a.Currency)
	}
	return Amount{Value: d, Currency: a.Currency, Issuer: a.Issuer}, nil
}
