package load

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vinayakanadinni99/ETL-Finance/model"
	"github.com/vinayakanadinni99/ETL-Finance/template"
)

// Execer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Upserter writes rows into the time series table, replacing the values of rows
// that already exist for the same (symbol, trading_date).
type Upserter struct {
	exec  Execer
	query string
}

func NewUpserter(exec Execer, table string) (*Upserter, error) {
	if !template.ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	query, err := renderQuery("upsert__time_series_data.sql", table)
	if err != nil {
		return nil, err
	}
	return &Upserter{exec: exec, query: query}, nil
}

// Load executes one upsert per row in the given order and returns how many rows were
// applied. It stops at the first failing row with a *model.PersistenceError; rows
// before it are not undone.
func (u *Upserter) Load(ctx context.Context, rows []model.Row) (int, error) {
	for i, row := range rows {
		_, err := u.exec.ExecContext(ctx, u.query,
			row.Symbol,
			row.TradingDate.Format(model.DateLayout),
			row.Open.String(),
			row.High.String(),
			row.Low.String(),
			row.Close.String(),
			row.Volume,
		)
		if err != nil {
			return i, &model.PersistenceError{Key: row.Key(), Err: err}
		}
	}
	return len(rows), nil
}
