package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/delimited"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/record"
)

// maxLineBytes bounds one JSONL line.
const maxLineBytes = 16 << 20

// readJSON reads an array of objects. Nested objects are flattened with "_".
func readJSON(r io.Reader, opts ReadOptions) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var objs []map[string]any
	if err := dec.Decode(&objs); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("read json: expected an array of objects: %v", err))
	}

	t := &Table{}
	seen := make(map[string]bool)
	for i, obj := range objs {
		if opts.MaxRows > 0 && len(t.Rows) >= opts.MaxRows {
			t.Truncated = true
			break
		}
		t.addObject(i+1, obj, seen)
	}
	return t, nil
}

// readJSONL reads one object per line. Export header lines are skipped.
func readJSONL(r io.Reader, opts ReadOptions) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	t := &Table{}
	seen := make(map[string]bool)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 || record.IsExportHeader(b) {
			continue
		}
		if opts.MaxRows > 0 && len(t.Rows) >= opts.MaxRows {
			t.Truncated = true
			break
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("read jsonl: line %d: %v", line, err))
		}
		t.addObject(line, obj, seen)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("read jsonl: %v", err))
	}
	return t, nil
}

func (t *Table) addObject(index int, obj map[string]any, seen map[string]bool) {
	cells := make(map[string]string)
	flatten("", obj, cells)

	keys := make([]string, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			t.Headers = append(t.Headers, k)
		}
	}
	t.Rows = append(t.Rows, Row{Index: index, Cells: cells})
}

// flatten writes scalar leaves of v into out. Arrays of scalars become
// "; "-joined lists; other arrays are kept as JSON text.
func flatten(prefix string, v any, out map[string]string) {
	switch x := v.(type) {
	case map[string]any:
		for k, vv := range x {
			key := NormalizeHeader(k)
			if prefix != "" {
				key = prefix + "_" + key
			}
			flatten(key, vv, out)
		}
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := scalar(item)
			if !ok {
				b, _ := json.Marshal(x)
				out[prefix] = string(b)
				return
			}
			items = append(items, s)
		}
		out[prefix] = delimited.Join(items, delimited.ItemSep)
	default:
		s, _ := scalar(x)
		out[prefix] = s
	}
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(x), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	}
	return "", false
}
