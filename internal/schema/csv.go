package schema

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"deepclean/internal/model"
)

// extractCSV streams the file row-by-row (never materializing the full
// payload), sniffing the delimiter from a 1 KiB prefix, and infers a
// per-column type from up to the first 50 values of each column. Grounded on
// schema_extractor.py's extract_csv_schema / _infer_csv_type.
func extractCSV(path string, sampleRows int) *model.Schema {
	sniff, err := os.Open(path)
	if err != nil {
		return errSchema(err)
	}
	prefix := make([]byte, 1024)
	n, readErr := io.ReadFull(sniff, prefix)
	sniff.Close()
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return errSchema(readErr)
	}
	delimiter := sniffDelimiter(prefix[:n])

	f, err := os.Open(path)
	if err != nil {
		return errSchema(err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.Comma = delimiter
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return &model.Schema{Kind: model.SchemaKindCSV, Columns: []string{}, RowCount: 0}
		}
		return errSchema(err)
	}

	columns := make([]string, len(header))
	copy(columns, header)

	samples := make([]map[string]string, 0, sampleRows)
	columnValues := make(map[string][]string, len(columns))
	rowCount := int64(0)

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rowCount++

		row := make(map[string]string, len(columns))
		for i, col := range columns {
			var val string
			if i < len(record) {
				val = record[i]
			}
			row[col] = val
			if len(columnValues[col]) < 50 {
				columnValues[col] = append(columnValues[col], val)
			}
		}
		if len(samples) < sampleRows {
			samples = append(samples, row)
		}
	}

	types := make(map[string]string, len(columns))
	for _, col := range columns {
		types[col] = inferCSVType(columnValues[col])
	}

	return &model.Schema{
		Kind:        model.SchemaKindCSV,
		Columns:     columns,
		ColumnTypes: types,
		RowCount:    rowCount,
		SampleRows:  samples,
	}
}

// sniffDelimiter inspects a 1 KiB prefix for the most plausible delimiter
// among comma, tab, semicolon and pipe, counting occurrences on the first
// line — a simplified stand-in for csv.Sniffer (no equivalent ships in the
// standard library or the retrieval pack).
func sniffDelimiter(sample []byte) rune {
	scanner := bufio.NewScanner(bytes.NewReader(sample))
	scanner.Scan()
	firstLine := scanner.Text()

	best := ','
	bestCount := -1
	for _, d := range []rune{',', '\t', ';', '|'} {
		count := 0
		for _, r := range firstLine {
			if r == d {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best
}

func inferCSVType(values []string) string {
	for _, val := range values {
		if val == "" {
			continue
		}
		if _, err := strconv.ParseInt(val, 10, 64); err == nil {
			return "int"
		}
		if _, err := strconv.ParseFloat(val, 64); err == nil {
			return "float"
		}
		return "str"
	}
	return "str"
}
