package stock

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteLedgerCSV(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	entries := []EntryView{
		{
			LedgerEntry: LedgerEntry{
				Change:     120,
				Balance:    120,
				SourceType: SourceReceipt,
				SourceID:   7,
				CreatedAt:  at,
			},
			ProductName:   "Steel Sheet 2mm",
			WarehouseName: "Main Warehouse",
		},
		{
			LedgerEntry: LedgerEntry{
				Change:     -20.5,
				Balance:    99.5,
				SourceType: SourceDelivery,
				SourceID:   3,
				CreatedAt:  at.Add(time.Hour),
			},
			ProductName:   "Steel Sheet 2mm",
			WarehouseName: "Main Warehouse",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLedgerCSV(&buf, entries))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, []string{"Date", "Product", "Warehouse", "Type", "Change", "Balance", "Source ID"}, records[0])
	require.Equal(t, "2026-03-14 09:30:00", records[1][0])
	require.Equal(t, "120.00", records[1][4])
	require.Equal(t, "-20.50", records[2][4])
	require.Equal(t, "99.50", records[2][5])
}

func TestWriteLedgerCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLedgerCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}
