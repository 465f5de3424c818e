package model

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"strings"
)

// Lamports is an arbitrary-precision lamport amount. Values routinely exceed
// the float64 safe-integer range, so all arithmetic stays in big.Int and the
// JSON representation is a quoted decimal string.
type Lamports struct {
	i big.Int
}

// LamportsFromUint64 builds a Lamports value from a native integer.
func LamportsFromUint64(v uint64) Lamports {
	var l Lamports
	l.i.SetUint64(v)
	return l
}

// LamportsFromBigInt copies v into a Lamports value. Negative amounts are invalid.
func LamportsFromBigInt(v *big.Int) (Lamports, error) {
	if v == nil || v.Sign() < 0 {
		return Lamports{}, fmt.Errorf("invalid lamport amount %v", v)
	}
	var l Lamports
	l.i.Set(v)
	return l, nil
}

// ParseLamports parses a decimal string.
func ParseLamports(s string) (Lamports, error) {
	s = strings.TrimSpace(s)
	var l Lamports
	if _, ok := l.i.SetString(s, 10); !ok || l.i.Sign() < 0 {
		return Lamports{}, fmt.Errorf("invalid lamport amount %q", s)
	}
	return l, nil
}

// BigInt returns a copy of the underlying integer.
func (l Lamports) BigInt() *big.Int { return new(big.Int).Set(&l.i) }

func (l Lamports) String() string { return l.i.String() }

func (l Lamports) IsZero() bool { return l.i.Sign() == 0 }

// Cmp compares two amounts, returning -1, 0 or +1.
func (l Lamports) Cmp(other Lamports) int { return l.i.Cmp(&other.i) }

// Add returns l + other.
func (l Lamports) Add(other Lamports) Lamports {
	var out Lamports
	out.i.Add(&l.i, &other.i)
	return out
}

func (l Lamports) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.i.String() + `"`), nil
}

func (l *Lamports) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseLamports(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Value implements driver.Valuer so amounts persist as decimal strings.
func (l Lamports) Value() (driver.Value, error) { return l.i.String(), nil }

// Scan implements sql.Scanner.
func (l *Lamports) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseLamports(v)
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	case []byte:
		return l.Scan(string(v))
	case nil:
		*l = Lamports{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Lamports", src)
	}
}
