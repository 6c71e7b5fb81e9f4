package load

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"
	"github.com/vinayakanadinni99/ETL-Finance/config"
	"github.com/vinayakanadinni99/ETL-Finance/model"
	"github.com/vinayakanadinni99/ETL-Finance/template"
)

// DatabaseURLEnv holds the Postgres connection string.
const DatabaseURLEnv = "DATABASE_URL"

//go:embed sql/*.sql
var queries embed.FS

type DB struct {
	Logger        *slog.Logger
	DB            *sql.DB
	Connector     *duckdb.Connector
	Driver        string
	DBType        string
	Table         string
	Transactional bool
}

// NewDB opens the database configured under `database` and checks it is reachable.
func NewDB(cfg *config.Config, logger *slog.Logger) (*DB, error) {
	if !template.ValidIdentifier(cfg.Database.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Database.Table)
	}

	db := &DB{
		Logger:        logger,
		Driver:        cfg.Database.Driver,
		Table:         cfg.Database.Table,
		Transactional: cfg.Load.Transactional,
	}

	var err error
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		err = db.openPostgres()
	case config.DriverDuckDB:
		err = db.openDuckDB(cfg.Database)
	default:
		err = fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, err
	}

	return db, nil
}

func (db *DB) openPostgres() error {
	dsn := os.Getenv(DatabaseURLEnv)
	if dsn == "" {
		return fmt.Errorf("%s env variable is not set", DatabaseURLEnv)
	}

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := sqlDB.PingContext(context.Background()); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to reach postgres: %w", err)
	}

	db.DB = sqlDB
	db.DBType = "postgres"
	db.Logger.Info("Connected to Postgres database")
	return nil
}

func (db *DB) openDuckDB(cfg config.DatabaseConfig) error {
	var path string
	if cfg.Path == "" || cfg.Path == ":memory:" {
		path = ""
		db.DBType = ":memory:"
	} else {
		path = cfg.Path
		db.DBType = path
	}

	var connInitFn func(driver.ExecerContext) error
	if len(cfg.ConnInitFnQueries) > 0 {
		connInitFn = func(exec driver.ExecerContext) error {
			for _, path := range cfg.ConnInitFnQueries {
				query, err := readQuery(path)
				if err != nil {
					return err
				}

				if _, err := exec.ExecContext(context.Background(), string(query), nil); err != nil {
					return fmt.Errorf("failed to execute query from file %s: %w", path, err)
				}
			}
			return nil
		}
		db.Logger.Debug(fmt.Sprintf("Connection initialization queries: %v", cfg.ConnInitFnQueries))
	}

	connector, err := duckdb.NewConnector(path, connInitFn)
	if err != nil {
		return err
	}

	db.Connector = connector
	db.DB = sql.OpenDB(connector)

	if db.DBType == ":memory:" {
		db.Logger.Info("Connected to DuckDB in-memory database")
	} else {
		db.Logger.Info(fmt.Sprintf("Connected to local DuckDB database at %s", db.DBType))
	}
	return nil
}

func readQuery(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	query, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return query, nil
}

// renderQuery renders one of the embedded statements for the configured table.
func renderQuery(name, table string) (string, error) {
	content, err := queries.ReadFile("sql/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded query %s: %w", name, err)
	}
	return template.RenderSqlTemplate(name, string(content), map[string]any{"Table": table})
}

func (db *DB) Close() {
	db.DB.Close()
	if db.Connector != nil {
		db.Connector.Close()
	}
}

// CreateTable creates the time series table if it does not exist yet.
func (db *DB) CreateTable(ctx context.Context) error {
	query, err := renderQuery("create__time_series_data.sql", db.Table)
	if err != nil {
		return err
	}

	db.Logger.Debug("Executing query", "query", query)
	if _, err := db.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", db.Table, err)
	}
	return nil
}

// Upsert writes rows in order. With load.transactional the rows are written in one
// transaction and nothing is kept when a row fails; otherwise rows written before the
// failing one stay.
func (db *DB) Upsert(ctx context.Context, rows []model.Row) (int, error) {
	if !db.Transactional {
		upserter, err := NewUpserter(db.DB, db.Table)
		if err != nil {
			return 0, err
		}
		return upserter.Load(ctx, rows)
	}

	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	upserter, err := NewUpserter(tx, db.Table)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	n, err := upserter.Load(ctx, rows)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.Logger.Error("Failed to roll back upsert", "error", rbErr)
		}
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return n, nil
}

// ReadRows returns the stored rows for symbol ordered by trading date.
func (db *DB) ReadRows(ctx context.Context, symbol string) ([]model.Row, error) {
	query, err := renderQuery("select__time_series_data.sql", db.Table)
	if err != nil {
		return nil, err
	}

	rows, err := db.DB.QueryContext(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		var (
			row                          model.Row
			date, open, high, low, closing string
		)
		if err := rows.Scan(&row.Symbol, &date, &open, &high, &low, &closing, &row.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if row.TradingDate, err = parseDate(date); err != nil {
			return nil, err
		}
		for _, p := range []struct {
			dst *decimal.Decimal
			src string
		}{{&row.Open, open}, {&row.High, high}, {&row.Low, low}, {&row.Close, closing}} {
			if *p.dst, err = decimal.NewFromString(p.src); err != nil {
				return nil, fmt.Errorf("failed to parse stored price %q: %w", p.src, err)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return out, nil
}

// RunQuery executes a statement that returns no rows.
func (db *DB) RunQuery(ctx context.Context, query string) error {
	db.Logger.Debug("Executing query", "query", query)
	_, err := db.DB.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	return nil
}

// RunQueryFile renders the SQL file at path with {{.Table}} bound to the configured
// table and executes it.
func (db *DB) RunQueryFile(ctx context.Context, path string) error {
	query, err := template.ExecuteSqlTemplate(path, map[string]any{"Table": db.Table})
	if err != nil {
		return err
	}

	return db.RunQuery(ctx, query)
}

// GetQueryResults executes a query and returns the results as a map of column names to slices of values.
// NULL values come back as empty strings.
func (db *DB) GetQueryResults(ctx context.Context, query string, args ...any) (map[string][]string, error) {
	rows, err := db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	results := make(map[string][]string)
	for _, col := range columns {
		results[col] = []string{}
	}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, col := range columns {
			if values[i] == nil {
				results[col] = append(results[col], "")
				continue
			}
			results[col] = append(results[col], fmt.Sprintf("%v", values[i]))
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return results, nil
}

// Summary describes what is stored for one symbol. FirstDate and LastDate are empty
// when nothing is stored.
type Summary struct {
	Symbol    string
	RowCount  int
	FirstDate string
	LastDate  string
}

// Summary counts the stored rows of symbol and reports the trading date range they cover.
func (db *DB) Summary(ctx context.Context, symbol string) (Summary, error) {
	query, err := renderQuery("summary__time_series_data.sql", db.Table)
	if err != nil {
		return Summary{}, err
	}

	results, err := db.GetQueryResults(ctx, query, symbol)
	if err != nil {
		return Summary{}, err
	}
	if len(results["row_count"]) != 1 {
		return Summary{}, fmt.Errorf("expected one summary row, got %d", len(results["row_count"]))
	}

	count, err := strconv.Atoi(results["row_count"][0])
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse row count %q: %w", results["row_count"][0], err)
	}

	summary := Summary{Symbol: symbol, RowCount: count}
	for _, d := range []struct {
		dst *string
		col string
	}{{&summary.FirstDate, "first_date"}, {&summary.LastDate, "last_date"}} {
		if v := results[d.col][0]; v != "" {
			t, err := parseDate(v)
			if err != nil {
				return Summary{}, err
			}
			*d.dst = t.Format(model.DateLayout)
		}
	}
	return summary, nil
}

func parseDate(s string) (time.Time, error) {
	// Some drivers render DATE casts with a time part.
	if len(s) > len(model.DateLayout) {
		s = s[:len(model.DateLayout)]
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored date %q: %w", s, err)
	}
	return t, nil
}
