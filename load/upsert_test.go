package load

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinayakanadinni99/ETL-Finance/model"
)

type mockExecer struct {
	execFunc func(query string, args ...any) (sql.Result, error)
	calls    [][]any
}

func (m *mockExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	m.calls = append(m.calls, args)
	return m.execFunc(query, args...)
}

func TestNewUpserter_RendersTable(t *testing.T) {
	var seen string
	exec := &mockExecer{execFunc: func(query string, args ...any) (sql.Result, error) {
		seen = query
		return nil, nil
	}}

	u, err := NewUpserter(exec, "market.prices")
	require.NoError(t, err)

	_, err = u.Load(context.Background(), []model.Row{row("IBM", "2026-01-05", "101", "103.25", "100.5", "102.8", 4200000)})
	require.NoError(t, err)
	assert.Contains(t, seen, "INSERT INTO market.prices (symbol, trading_date, open, high, low, close, volume)")
	assert.Contains(t, seen, "ON CONFLICT (symbol, trading_date) DO UPDATE SET")
}

func TestNewUpserter_InvalidTable(t *testing.T) {
	_, err := NewUpserter(&mockExecer{}, "prices; DROP TABLE x")
	assert.Error(t, err)
}

func TestUpserter_BindsRowValues(t *testing.T) {
	exec := &mockExecer{execFunc: func(string, ...any) (sql.Result, error) { return nil, nil }}
	u, err := NewUpserter(exec, testTable)
	require.NoError(t, err)

	n, err := u.Load(context.Background(), []model.Row{row("IBM", "2026-01-05", "101.00", "103.25", "100.50", "102.80", 4200000)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, [][]any{{"IBM", "2026-01-05", "101", "103.25", "100.5", "102.8", int64(4200000)}}, exec.calls)
}

func TestUpserter_StopsAtFirstFailure(t *testing.T) {
	dbErr := errors.New("connection reset")
	exec := &mockExecer{execFunc: func(_ string, args ...any) (sql.Result, error) {
		if args[1] == "2026-01-05" {
			return nil, dbErr
		}
		return nil, nil
	}}
	u, err := NewUpserter(exec, testTable)
	require.NoError(t, err)

	rows := []model.Row{
		row("IBM", "2026-01-02", "100", "101.5", "99", "100.75", 5000000),
		row("IBM", "2026-01-05", "101", "103.25", "100.5", "102.8", 4200000),
		row("IBM", "2026-01-06", "102", "104", "101", "103", 3900000),
	}

	n, err := u.Load(context.Background(), rows)
	assert.Equal(t, 1, n)
	assert.Len(t, exec.calls, 2, "rows after the failing one are not attempted")

	var perr *model.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, rows[1].Key(), perr.Key)
	assert.ErrorIs(t, err, dbErr)
	assert.EqualError(t, err, "failed to upsert row IBM@2026-01-05: connection reset")
}
