package order

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// NumberPrefix tags every generated order number.
const NumberPrefix = "ORD-"

const randomDigits = 9 // 36^9 ≈ 46 bits of entropy

var base36Max = new(big.Int).Exp(big.NewInt(36), big.NewInt(randomDigits), nil)

// NewNumber produces a human-readable order number: a fixed prefix, the
// current millisecond timestamp in base36, and nine random base36 characters.
// Numbers are unique with negligible collision probability at expected order
// volumes; the store's unique constraint backstops the residual risk and the
// caller regenerates on conflict.
func NewNumber() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)

	n, err := rand.Int(rand.Reader, base36Max)
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(err)
	}
	random := n.Text(36)
	if len(random) < randomDigits {
		random = strings.Repeat("0", randomDigits-len(random)) + random
	}

	return NumberPrefix + strings.ToUpper(ts+random)
}
