package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/record"
)

// IsExportFile reports whether path is a JSONL file written by export.
func IsExportFile(path string) bool {
	if ext, _ := FormatOf(path); ext != ".jsonl" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		return record.IsExportHeader(b)
	}
	return false
}

// ReadExport reads an export file back into devices.
func ReadExport(r io.Reader) (*record.ExportHeader, []*record.Device, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var header *record.ExportHeader
	var devices []*record.Device
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		if header == nil {
			if !record.IsExportHeader(b) {
				return nil, nil, errors.NewInvalidRequest("not an export file: missing header line")
			}
			header = &record.ExportHeader{}
			if err := json.Unmarshal(b, header); err != nil {
				return nil, nil, errors.NewInvalidRequest(fmt.Sprintf("export header: %v", err))
			}
			continue
		}
		d := &record.Device{}
		if err := json.Unmarshal(b, d); err != nil {
			return nil, nil, errors.NewInvalidRequest(fmt.Sprintf("export line %d: %v", line, err))
		}
		d.Restore()
		devices = append(devices, d)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, errors.NewInvalidRequest(fmt.Sprintf("read export: %v", err))
	}
	if header == nil {
		return nil, nil, errors.NewInvalidRequest("not an export file: empty")
	}
	return header, devices, nil
}
