package dbtype

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
)

// Logical names introduced by the extension types.
const (
	Money   = "money"
	Percent = "percent"
)

// Handler identifiers of the extension types.
const (
	ArrayTypeID   = "ormext.array"
	ObjectTypeID  = "ormext.object"
	MoneyTypeID   = "ormext.money"
	PercentTypeID = "ormext.percent"
)

// MoneyScale is the number of fractional digits persisted for money values.
const MoneyScale = 4

// ArrayType stores a list as a JSON document in a string column.
type ArrayType struct{}

func (ArrayType) ID() string          { return ArrayTypeID }
func (ArrayType) StorageKind() string { return "string" }

func (ArrayType) ToDatabase(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("array: %w", err)
	}
	if len(b) == 0 || b[0] != '[' {
		return nil, fmt.Errorf("array: value of type %T is not a list", value)
	}
	return string(b), nil
}

func (ArrayType) FromDatabase(value any) (any, error) {
	raw, ok, err := rawText(value)
	if err != nil || !ok {
		return nil, err
	}
	if raw == "" {
		return []any{}, nil
	}
	var out []any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("array: %w", err)
	}
	return out, nil
}

// ObjectType stores a key/value object as a JSON document in a string column.
type ObjectType struct{}

func (ObjectType) ID() string          { return ObjectTypeID }
func (ObjectType) StorageKind() string { return "string" }

func (ObjectType) ToDatabase(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("object: %w", err)
	}
	if len(b) == 0 || b[0] != '{' {
		return nil, fmt.Errorf("object: value of type %T is not an object", value)
	}
	return string(b), nil
}

func (ObjectType) FromDatabase(value any) (any, error) {
	raw, ok, err := rawText(value)
	if err != nil || !ok {
		return nil, err
	}
	out := map[string]any{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("object: %w", err)
	}
	return out, nil
}

// MoneyType stores monetary amounts as fixed-point decimals with MoneyScale digits.
// Values are exchanged as decimal strings so no precision is lost to float64.
type MoneyType struct{}

func (MoneyType) ID() string          { return MoneyTypeID }
func (MoneyType) StorageKind() string { return "decimal" }

func (MoneyType) ToDatabase(value any) (any, error) {
	r, ok, err := toRat(value)
	if err != nil || !ok {
		return nil, wrapErr("money", err)
	}
	return r.FloatString(MoneyScale), nil
}

func (MoneyType) FromDatabase(value any) (any, error) {
	r, ok, err := toRat(value)
	if err != nil || !ok {
		return nil, wrapErr("money", err)
	}
	return r.FloatString(MoneyScale), nil
}

// PercentType stores percentages as decimals and reads them back as float64.
type PercentType struct{}

func (PercentType) ID() string          { return PercentTypeID }
func (PercentType) StorageKind() string { return "decimal" }

func (PercentType) ToDatabase(value any) (any, error) {
	r, ok, err := toRat(value)
	if err != nil || !ok {
		return nil, wrapErr("percent", err)
	}
	f, _ := r.Float64()
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func (PercentType) FromDatabase(value any) (any, error) {
	r, ok, err := toRat(value)
	if err != nil || !ok {
		return nil, wrapErr("percent", err)
	}
	f, _ := r.Float64()
	return f, nil
}

func wrapErr(prefix string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", prefix, err)
}

func rawText(value any) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case []byte:
		return string(v), true, nil
	default:
		return "", false, fmt.Errorf("unsupported database value of type %T", value)
	}
}

// decimalText is the plain decimal notation accepted for money and percent text.
// big.Rat also parses fractions, hex floats and exponents, which are refused here.
var decimalText = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

func toRat(value any) (*big.Rat, bool, error) {
	switch v := value.(type) {
	case nil:
		return nil, false, nil
	case *big.Rat:
		return v, true, nil
	case int:
		return new(big.Rat).SetInt64(int64(v)), true, nil
	case int64:
		return new(big.Rat).SetInt64(v), true, nil
	case float64:
		r := new(big.Rat)
		if r.SetFloat64(v) == nil {
			return nil, false, fmt.Errorf("invalid number %v", v)
		}
		return r, true, nil
	case string, []byte:
		s, _, _ := rawText(v)
		if !decimalText.MatchString(s) {
			return nil, false, fmt.Errorf("invalid decimal %q", s)
		}
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return nil, false, fmt.Errorf("invalid decimal %q", s)
		}
		return r, true, nil
	default:
		return nil, false, fmt.Errorf("unsupported value of type %T", value)
	}
}
