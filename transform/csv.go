package transform

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/vinayakanadinni99/ETL-Finance/model"
)

// CSVHeader matches the column order of the time_series_data table.
var CSVHeader = []string{"symbol", "trading_date", "open", "high", "low", "close", "volume"}

// RowsToCSV renders rows as CSV with a header line.
func RowsToCSV(rows []model.Row) ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	if err := writer.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Symbol,
			row.TradingDate.Format(model.DateLayout),
			row.Open.String(),
			row.High.String(),
			row.Low.String(),
			row.Close.String(),
			strconv.FormatInt(row.Volume, 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record for %s: %w", row.Key(), err)
		}
	}

	// Flush the writer to ensure all data is written to the buffer
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	return buffer.Bytes(), nil
}
