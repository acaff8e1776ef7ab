package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/docsql/internal/core"
)

func TestPrintResult(t *testing.T) {
	first := core.NewRow()
	first.Set("id", int64(1))
	first.Set("name", "ann")
	second := core.NewRow()
	second.Set("id", int64(2))
	second.Set("name", nil)

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, &core.Result{
		Columns: []string{"id", "name"},
		Rows:    []*core.Row{first, second},
		Trace:   []string{"scan: 2 rows"},
	}))

	assert.Equal(t, "id  name\n1   ann\n2   NULL\n(2 rows)\n-- scan: 2 rows\n", buf.String())
}

func TestPrintResultForWrites(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, &core.Result{Columns: []string{}, RowsAffected: 1}))
	assert.Equal(t, "1 row affected\n", buf.String())
}

func TestStatementBuffer(t *testing.T) {
	var buf statementBuffer

	_, ready := buf.add("   ")
	assert.False(t, ready)
	assert.True(t, buf.empty())

	_, ready = buf.add("SELECT 'a;")
	assert.False(t, ready)
	_, ready = buf.add("b'")
	assert.False(t, ready)
	text, ready := buf.add("FROM t;")
	require.True(t, ready)
	assert.Equal(t, "SELECT 'a;\nb'\nFROM t;", text)
	assert.True(t, buf.empty())
}

func TestReadSQL(t *testing.T) {
	defer func() { execSQL, execFile = "", "" }()

	got, err := readSQL(strings.NewReader("SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)

	execSQL = "SELECT 2"
	got, err = readSQL(nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", got)

	execFile = "schema.sql"
	_, err = readSQL(nil)
	assert.Error(t, err)
}
