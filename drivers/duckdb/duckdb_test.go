package duckdb

import (
	"testing"

	"github.com/go-mizu/fsql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	d, ok := fsql.Lookup(Name)
	require.True(t, ok)
	assert.Equal(t, fsql.PlaceholderQuestion, d.Placeholder)
	assert.Contains(t, fsql.Drivers(), Name)
}
