// Package tabular implements the tab-separated row format used for
// ROM map specification files and for dump/load (spec §6, §4.9): tab
// delimiter, Unix line endings, no quoting, header row first.
package tabular

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/seehuhn-romtool/romtool/romerr"
)

// Row is one data row, keyed by column header.
type Row map[string]string

// ReadAll parses a full TSV stream into an ordered header list and a
// slice of rows in file order.
func ReadAll(r io.Reader) (header []string, rows []Row, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	header = strings.Split(sc.Text(), "\t")
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(fields) {
				row[col] = fields[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}

// WriteAll serializes rows to w as TSV with an `_idx` column prepended
// to header, carrying each row's 0-based position (spec §4.9).
func WriteAll(w io.Writer, header []string, rows []Row) error {
	bw := bufio.NewWriter(w)
	full := append([]string{"_idx"}, header...)
	if _, err := fmt.Fprintln(bw, strings.Join(full, "\t")); err != nil {
		return err
	}
	for i, row := range rows {
		fields := make([]string, len(full))
		fields[0] = strconv.Itoa(i)
		for j, col := range header {
			fields[j+1] = row[col]
		}
		if _, err := fmt.Fprintln(bw, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// OrderByIdx sorts rows by their `_idx` column, failing on duplicate
// indices (spec §9 open question: "treat duplicates as an error; allow
// gaps"). Rows lacking `_idx` are left in file order and appended after
// the indexed ones.
func OrderByIdx(rows []Row) ([]Row, error) {
	type indexed struct {
		idx int
		row Row
		has bool
	}
	items := make([]indexed, len(rows))
	seen := make(map[int]bool)
	for i, row := range rows {
		items[i].row = row
		raw, ok := row["_idx"]
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &romerr.MapError{Msg: "invalid _idx value " + raw}
		}
		if seen[n] {
			return nil, &romerr.DuplicateError{Kind: "_idx", Key: raw}
		}
		seen[n] = true
		items[i].idx = n
		items[i].has = true
	}
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].has != items[b].has {
			return items[a].has
		}
		return items[a].idx < items[b].idx
	})
	out := make([]Row, len(items))
	for i, it := range items {
		out[i] = it.row
	}
	return out, nil
}
