package types

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// TokenSize is the length of a token identifier in bytes (96 bits,
// enough to hold any value below 10^27).
const TokenSize = 12

// Token is a disposable access code: a big-endian integer in the
// range [10^15, 10^27). Its canonical textual form is decimal.
type Token [TokenSize]byte

// Token value range bounds (10^15 inclusive, 10^27 exclusive).
var (
	tokenFloor = new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil)
	tokenCeil  = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)
)

// TokenFloor returns 10^15, the smallest valid token value.
func TokenFloor() *big.Int {
	return new(big.Int).Set(tokenFloor)
}

// TokenCeil returns 10^27, one past the largest valid token value.
func TokenCeil() *big.Int {
	return new(big.Int).Set(tokenCeil)
}

// TokenFromBig converts an integer to a Token.
// Returns an error if the value lies outside [10^15, 10^27).
func TokenFromBig(v *big.Int) (Token, error) {
	if v == nil || v.Cmp(tokenFloor) < 0 || v.Cmp(tokenCeil) >= 0 {
		return Token{}, fmt.Errorf("token value out of range [10^15, 10^27)")
	}
	var t Token
	v.FillBytes(t[:])
	return t, nil
}

// ParseToken converts a decimal string to a Token.
func ParseToken(s string) (Token, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Token{}, fmt.Errorf("invalid token %q: not a decimal integer", s)
	}
	return TokenFromBig(v)
}

// Big returns the token value as a big integer.
func (t Token) Big() *big.Int {
	return new(big.Int).SetBytes(t[:])
}

// IsZero returns true if the token is all zeros (the zero value is
// never a valid token).
func (t Token) IsZero() bool {
	return t == Token{}
}

// String returns the decimal form of the token.
func (t Token) String() string {
	return t.Big().String()
}

// Bytes returns a copy of the token as a byte slice.
func (t Token) Bytes() []byte {
	b := make([]byte, TokenSize)
	copy(b, t[:])
	return b
}

// MarshalJSON encodes the token as a decimal string.
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a decimal string into a token.
func (t *Token) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseToken(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
