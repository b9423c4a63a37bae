package eip7683

import (
	"fmt"
	"math/big"
)

// amountBelow compares two decimal-string token amounts, avoiding the
// float precision loss the chain.Transaction doc comment warns about.
func amountBelow(amount, min string) (bool, error) {
	a, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return false, fmt.Errorf("eip7683: not a decimal integer amount: %q", amount)
	}
	m, ok := new(big.Int).SetString(min, 10)
	if !ok {
		return false, fmt.Errorf("eip7683: not a decimal integer minimum: %q", min)
	}
	return a.Cmp(m) < 0, nil
}
