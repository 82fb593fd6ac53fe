// Package export renders a user's analysis history as an XLSX workbook.
package export

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/ceylonhomes/valuation-api/internal/model"
	"github.com/ceylonhomes/valuation-api/internal/store"
)

// HistoryRow pairs a past query with its analysis result, when one exists.
type HistoryRow struct {
	Item   model.HistoryItem
	Result *model.AnalysisResult
}

// FromStore loads up to limit history rows for userID, attaching each
// query's latest response. Queries that never produced a response are
// kept with a nil Result.
func FromStore(ctx context.Context, s store.Store, userID string, limit int) ([]HistoryRow, error) {
	items, err := s.ListHistory(ctx, userID, limit, 0)
	if err != nil {
		return nil, eris.Wrap(err, "export: list history")
	}

	rows := make([]HistoryRow, 0, len(items))
	for _, item := range items {
		row := HistoryRow{Item: item}
		if item.HasResponse {
			resp, err := s.GetResponse(ctx, item.ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, eris.Wrapf(err, "export: response for %s", item.ID)
			}
			if resp != nil {
				row.Result = &resp.Result
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var historyHeader = []string{
	"Query ID", "Query", "Date", "Estimated Price", "Currency",
	"Market Low", "Market High", "Location Score", "Verdict", "Confidence", "Error",
}

// WriteHistory saves rows as an XLSX workbook at path, one history entry
// per row on a single "History" sheet.
func WriteHistory(path string, rows []HistoryRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("History")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range historyHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Item.ID)
		row.AddCell().SetString(r.Item.QueryText)
		row.AddCell().SetString(r.Item.CreatedAt.UTC().Format("2006-01-02 15:04"))

		if r.Result == nil {
			for range historyHeader[3:] {
				row.AddCell()
			}
			continue
		}

		row.AddCell().SetFloat(r.Result.EstimatedPrice)
		row.AddCell().SetString(r.Result.Currency)
		row.AddCell().SetFloat(r.Result.MarketLow)
		row.AddCell().SetFloat(r.Result.MarketHigh)
		row.AddCell().SetFloat(r.Result.LocationScore)
		row.AddCell().SetString(string(r.Result.DealVerdict))
		row.AddCell().SetFloat(r.Result.Confidence)
		row.AddCell().SetString(r.Result.Error)
	}

	return eris.Wrap(f.Save(path), "export: save workbook")
}
