package enums

import "fmt"

// Currency is the denomination for catalog prices. Only USD is priced today.
type Currency string

const CurrencyUSD Currency = "USD"

func (c Currency) String() string {
	return string(c)
}

func (c Currency) IsValid() bool {
	return c == CurrencyUSD
}

func ParseCurrency(value string) (Currency, error) {
	if Currency(value) == CurrencyUSD {
		return CurrencyUSD, nil
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
