// Package ingest decodes the ndjson ingest format into table.ParsedRow
// values and appends them to a partition, one line per row.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	siloerrors "github.com/standardbeagle/silo/internal/errors"
	"github.com/standardbeagle/silo/internal/table"
	"github.com/standardbeagle/silo/internal/types"
)

// maxLineSize bounds a single ndjson line; a long aligned sequence plus
// metadata can run well past bufio.Scanner's 64KiB default.
const maxLineSize = 64 * 1024 * 1024

// sequenceValue is the wire shape of a sequence column's value.
type sequenceValue struct {
	Sequence   string   `json:"sequence"`
	Insertions []string `json:"insertions"`
}

// Result tallies one ingest run.
type Result struct {
	RowsAppended int
	LineErrors   []LineError
}

// LineError pairs a 1-indexed ndjson line number with the error that
// line produced. Append errors abort only that line.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

// Batch reads newline-delimited JSON records from r and appends each to
// partition. A row whose decode or append fails is recorded in
// Result.LineErrors and skipped; it never partially commits, since
// Table.Append itself is transactional per row.
func Batch(tbl *table.Table, partition *table.TablePartition, r io.Reader) (Result, error) {
	schema := tbl.Schema()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var res Result
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		row, err := DecodeLine(schema, []byte(raw))
		if err != nil {
			res.LineErrors = append(res.LineErrors, LineError{Line: line, Err: err})
			continue
		}
		if _, err := tbl.Append(partition, row); err != nil {
			res.LineErrors = append(res.LineErrors, LineError{Line: line, Err: err})
			continue
		}
		res.RowsAppended++
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("ingest: reading input: %w", err)
	}
	return res, nil
}

// DecodeLine parses one ndjson object into a ParsedRow, dispatching each
// field by the ColumnType schema declares for it. Fields absent from the
// object, or present as JSON null, become null cells.
func DecodeLine(schema *table.TableSchema, line []byte) (table.ParsedRow, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return table.ParsedRow{}, siloerrors.NewAppendError(siloerrors.AppendJSONShape, fmt.Errorf("decoding row: %w", err))
	}

	row := table.ParsedRow{}
	seen := make(map[string]bool)
	for _, col := range schema.Columns {
		if seen[col.Name] && !isSequenceColumnType(col.Type) {
			continue
		}
		seen[col.Name] = true

		raw, present := fields[col.Name]
		if !present || isJSONNull(raw) {
			if col.Name == schema.PrimaryKey {
				return table.ParsedRow{}, siloerrors.NewAppendError(siloerrors.AppendJSONShape, fmt.Errorf("primary key column %q must not be null", col.Name))
			}
			continue
		}

		switch col.Type {
		case types.ColumnIndexedString:
			s, err := decodeString(raw, col.Name)
			if err != nil {
				return table.ParsedRow{}, err
			}
			setString(&row.IndexedStrings, col.Name, s)
			if col.Name == schema.PrimaryKey {
				row.PrimaryKey = s
			}
		case types.ColumnPangoLineageIndexedString:
			s, err := decodeString(raw, col.Name)
			if err != nil {
				return table.ParsedRow{}, err
			}
			setString(&row.PangoLineages, col.Name, s)
			if col.Name == schema.PrimaryKey {
				row.PrimaryKey = s
			}
		case types.ColumnString:
			s, err := decodeString(raw, col.Name)
			if err != nil {
				return table.ParsedRow{}, err
			}
			setString(&row.Strings, col.Name, s)
			if col.Name == schema.PrimaryKey {
				row.PrimaryKey = s
			}
		case types.ColumnDate:
			s, err := decodeString(raw, col.Name)
			if err != nil {
				return table.ParsedRow{}, err
			}
			d, err := types.ParseDate(s)
			if err != nil {
				return table.ParsedRow{}, siloerrors.NewAppendError(siloerrors.AppendJSONShape, fmt.Errorf("column %q: %w", col.Name, err))
			}
			if row.Dates == nil {
				row.Dates = make(map[string]*types.Date)
			}
			row.Dates[col.Name] = &d
		case types.ColumnInt32:
			var v int32
			if err := json.Unmarshal(raw, &v); err != nil {
				return table.ParsedRow{}, siloerrors.NewAppendError(siloerrors.AppendJSONShape, fmt.Errorf("column %q: expected integer: %w", col.Name, err))
			}
			if row.Int32s == nil {
				row.Int32s = make(map[string]*int32)
			}
			row.Int32s[col.Name] = &v
		case types.ColumnFloat64:
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return table.ParsedRow{}, siloerrors.NewAppendError(siloerrors.AppendJSONShape, fmt.Errorf("column %q: expected number: %w", col.Name, err))
			}
			if row.Float64s == nil {
				row.Float64s = make(map[string]*float64)
			}
			row.Float64s[col.Name] = &v
		case types.ColumnBool:
			var v bool
			if err := json.Unmarshal(raw, &v); err != nil {
				return table.ParsedRow{}, siloerrors.NewAppendError(siloerrors.AppendJSONShape, fmt.Errorf("column %q: expected boolean: %w", col.Name, err))
			}
			if row.Bools == nil {
				row.Bools = make(map[string]*bool)
			}
			row.Bools[col.Name] = &v
		case types.ColumnNucleotideSequence:
			seq, insertions, err := decodeSequence(raw, col.Name)
			if err != nil {
				return table.ParsedRow{}, err
			}
			setString(&row.NucleotideSequences, col.Name, seq)
			if len(insertions) > 0 {
				if row.InsertionsNuc == nil {
					row.InsertionsNuc = make(map[string]map[int]string)
				}
				row.InsertionsNuc[col.Name] = insertions
			}
		case types.ColumnAminoAcidSequence:
			seq, insertions, err := decodeSequence(raw, col.Name)
			if err != nil {
				return table.ParsedRow{}, err
			}
			setString(&row.AminoAcidSequences, col.Name, seq)
			if len(insertions) > 0 {
				if row.InsertionsAA == nil {
					row.InsertionsAA = make(map[string]map[int]string)
				}
				row.InsertionsAA[col.Name] = insertions
			}
		case types.ColumnInsertionNuc, types.ColumnInsertionAA:
			// decoded alongside its paired sequence column above.
		}
	}
	return row, nil
}

func isSequenceColumnType(t types.ColumnType) bool {
	return t == types.ColumnNucleotideSequence || t == types.ColumnAminoAcidSequence
}

func isJSONNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

func decodeString(raw json.RawMessage, field string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", siloerrors.NewAppendError(siloerrors.AppendJSONShape, fmt.Errorf("column %q: expected string: %w", field, err))
	}
	return s, nil
}

func decodeSequence(raw json.RawMessage, field string) (string, map[int]string, error) {
	var v sequenceValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", nil, siloerrors.NewAppendError(siloerrors.AppendJSONShape, fmt.Errorf("sequence column %q: expected {sequence, insertions}: %w", field, err))
	}
	insertions := make(map[int]string, len(v.Insertions))
	for _, entry := range v.Insertions {
		pos, text, err := parseInsertionEntry(entry)
		if err != nil {
			return "", nil, siloerrors.NewAppendError(siloerrors.AppendJSONShape, fmt.Errorf("sequence column %q: %w", field, err))
		}
		insertions[pos] = text
	}
	return v.Sequence, insertions, nil
}

// parseInsertionEntry splits a wire insertion entry "pos:TEXT" into its
// 1-indexed position and text, converting the position to 0-indexed to
// match the rest of the engine's internal addressing.
func parseInsertionEntry(entry string) (int, string, error) {
	idx := strings.IndexByte(entry, ':')
	if idx < 0 {
		return 0, "", fmt.Errorf("malformed insertion entry %q, want \"pos:TEXT\"", entry)
	}
	pos, err := strconv.Atoi(entry[:idx])
	if err != nil {
		return 0, "", fmt.Errorf("malformed insertion position in %q: %w", entry, err)
	}
	if pos < 1 {
		return 0, "", fmt.Errorf("insertion position must be 1-indexed and positive, got %d", pos)
	}
	return pos - 1, entry[idx+1:], nil
}

func setString(m *map[string]*string, name, value string) {
	if *m == nil {
		*m = make(map[string]*string)
	}
	v := value
	(*m)[name] = &v
}
