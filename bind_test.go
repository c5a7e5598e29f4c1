package fsql

import (
	"database/sql"
	"database/sql/driver"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status string

type celsius float32

type upper string

func (u upper) Value() (driver.Value, error) { return string(u) + "!", nil }

func TestBind_Coercions(t *testing.T) {
	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	n := 5
	var nilInt *int
	var nilValuer *sql.NullString
	ns := sql.NullString{String: "x", Valid: true}
	out := sql.Out{Dest: new(int64)}
	named := sql.Named("a", 1)

	got, err := Bind(
		nil,
		nilInt,
		&n,
		int8(-3),
		uint16(7),
		uint64(math.MaxInt64),
		float32(1.5),
		status("active"),
		celsius(2.5),
		ts,
		ns,
		nilValuer,
		upper("hi"),
		out,
		named,
		true,
	)
	require.NoError(t, err)
	assert.Equal(t, []any{
		nil,
		nil,
		int64(5),
		int64(-3),
		int64(7),
		int64(math.MaxInt64),
		float64(1.5),
		"active",
		float64(2.5),
		ts,
		ns,
		nil,
		upper("hi"),
		out,
		named,
		true,
	}, got)
}

func TestBind_BytesAreCopied(t *testing.T) {
	b := []byte("abc")
	got, err := Bind(b)
	require.NoError(t, err)
	b[0] = 'z'
	assert.Equal(t, []byte("abc"), got[0])
}

func TestBind_PointerToValuer(t *testing.T) {
	u := upper("x")
	pu := &u
	got, err := Bind(&pu)
	require.NoError(t, err)
	assert.Equal(t, pu, got[0])
}

func TestBind_UnsignedOverflow(t *testing.T) {
	_, err := Bind("ok", uint64(math.MaxInt64)+1)
	require.ErrorIs(t, err, ErrBind)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 2, fe.Slot)
	assert.Contains(t, err.Error(), "slot 2")
}

func TestBind_Empty(t *testing.T) {
	got, err := Bind()
	require.NoError(t, err)
	assert.Empty(t, got)
}
