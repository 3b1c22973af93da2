package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
)

func readXLSX(r io.Reader, opts ReadOptions) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("read xlsx: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewInvalidRequest("read xlsx: workbook has no sheets")
	}
	sheet := sheets[0]
	if opts.Sheet != "" {
		sheet = ""
		for _, s := range sheets {
			if s == opts.Sheet {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("sheet %q not found (sheets: %v)", opts.Sheet, sheets))
		}
	}

	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("read sheet %q: %v", sheet, err))
	}
	return fromGrid(grid, nil, opts), nil
}
