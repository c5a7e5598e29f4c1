package fsql

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Bind coerces positional values into the forms every database/sql driver
// accepts. Order is preserved; failures carry the 1-based slot.
//
// Coercions:
//   - nil and typed nil pointers become nil; other pointers are dereferenced
//   - driver.Valuer, sql.Out, sql.NamedArg and time.Time pass through
//   - []byte is copied
//   - signed and unsigned integers widen to int64 (unsigned values above
//     math.MaxInt64 are rejected)
//   - float32 widens to float64
//   - named types over a primitive kind convert to that kind
func Bind(values ...any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		c, err := bindValue(v)
		if err != nil {
			return nil, &Error{Kind: ErrBind, Op: "bind", Slot: i + 1, Err: err}
		}
		out[i] = c
	}
	return out, nil
}

func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case driver.Valuer, sql.Out, sql.NamedArg, time.Time:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		return v, nil
	case []byte:
		if x == nil {
			return nil, nil
		}
		return append([]byte(nil), x...), nil
	case string, bool, int64, float64:
		return v, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
		if rv.Type().Implements(valuerType) {
			return rv.Interface(), nil
		}
	}
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return append([]byte(nil), rv.Bytes()...), nil
		}
	case reflect.Struct:
		if rv.Type() == timeType {
			return rv.Interface(), nil
		}
	}
	// Leave anything else to the driver's own converter; it reports
	// unsupported types at execute time.
	return rv.Interface(), nil
}
