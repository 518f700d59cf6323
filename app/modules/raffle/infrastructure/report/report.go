package rafflereport

import (
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Winners"

var header = []string{"Round", "Request ID", "Winner", "Slot", "Players", "Amount", "Random Word", "Picked At"}

// WriteWinners renders winners as a single-sheet xlsx workbook.
func WriteWinners(w io.Writer, winners []raffledomain.Winner) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, title); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return err
	}

	for i, winner := range winners {
		row := []any{
			winner.RoundNumber,
			string(winner.RequestID),
			string(winner.Winner),
			winner.WinnerIndex,
			winner.Players,
			// amounts exceed float precision, keep them textual
			amount(winner.Amount),
			amount(winner.RandomWord),
			winner.PickedAt.UTC().Format(time.RFC3339),
		}
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(SheetName, "B", "C", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "F", "G", 40); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "H", "H", 22); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ReadWinners parses a workbook produced by WriteWinners.
func ReadWinners(r io.Reader) ([]raffledomain.Winner, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]raffledomain.Winner, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) < len(header) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", n+2, len(header), len(row))
		}
		var w raffledomain.Winner
		if w.RoundNumber, err = strconv.ParseUint(row[0], 10, 64); err != nil {
			return nil, fmt.Errorf("row %d round: %w", n+2, err)
		}
		w.RequestID = raffledomain.RequestID(row[1])
		w.Winner = raffledomain.Account(row[2])
		if w.WinnerIndex, err = strconv.Atoi(row[3]); err != nil {
			return nil, fmt.Errorf("row %d slot: %w", n+2, err)
		}
		if w.Players, err = strconv.Atoi(row[4]); err != nil {
			return nil, fmt.Errorf("row %d players: %w", n+2, err)
		}
		if w.Amount, err = raffledomain.ParseAmount(row[5]); err != nil {
			return nil, fmt.Errorf("row %d amount: %w", n+2, err)
		}
		if w.RandomWord, err = raffledomain.ParseAmount(row[6]); err != nil {
			return nil, fmt.Errorf("row %d word: %w", n+2, err)
		}
		if w.PickedAt, err = time.Parse(time.RFC3339, row[7]); err != nil {
			return nil, fmt.Errorf("row %d picked at: %w", n+2, err)
		}
		out = append(out, w)
	}
	return out, nil
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
