package stock

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteLedgerCSV serialises move history to CSV, in the order given.
func WriteLedgerCSV(w io.Writer, entries []EntryView) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Date", "Product", "Warehouse", "Type", "Change", "Balance", "Source ID"}); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			entry.CreatedAt.Format("2006-01-02 15:04:05"),
			entry.ProductName,
			entry.WarehouseName,
			string(entry.SourceType),
			formatFloat(entry.Change),
			formatFloat(entry.Balance),
			strconv.FormatInt(entry.SourceID, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
