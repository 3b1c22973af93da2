package ingest

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
)

func readCSV(r io.Reader, opts ReadOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var grid [][]string
	var lines []int
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("read csv: %v", err))
		}
		line, _ := cr.FieldPos(0)
		grid = append(grid, rec)
		lines = append(lines, line)
	}
	return fromGrid(grid, lines, opts), nil
}
