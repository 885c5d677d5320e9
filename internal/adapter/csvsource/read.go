package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/outbreak-series-etl/internal/config"
	"github.com/couchcryptid/outbreak-series-etl/internal/domain"
)

const byteOrderMark = "\ufeff"

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

func readHeader(cr *csv.Reader) ([]string, error) {
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], byteOrderMark)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// ReadWide parses one metric's wide file: a region column, an optional
// sub-region column and one column per date. Every other column is passed
// through as a cell and left to the normalizer to ignore.
func ReadWide(r io.Reader, cols config.WideColumns) ([]domain.RawRow, error) {
	cr := newReader(r)
	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	regionIdx := columnIndex(header, cols.RegionColumn)
	if regionIdx < 0 {
		return nil, fmt.Errorf("missing region column %q", cols.RegionColumn)
	}
	subIdx := columnIndex(header, cols.SubRegionColumn)

	var rows []domain.RawRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		row := domain.RawRow{
			Region:    cell(rec, regionIdx),
			SubRegion: cell(rec, subIdx),
			Cells:     make(map[string]string, len(header)),
		}
		for i, label := range header {
			if i == regionIdx || i == subIdx {
				continue
			}
			row.Cells[label] = cell(rec, i)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadLong pivots a long file (one row per country and date) into wide rows
// per metric. columns maps each metric to the column holding it; metrics
// whose column is absent from the header are left out of the result.
// Countries keep the order of their first appearance.
func ReadLong(r io.Reader, src config.LongSource, columns map[domain.Metric]string) (map[domain.Metric][]domain.RawRow, error) {
	cr := newReader(r)
	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	dateIdx := columnIndex(header, src.DateColumn)
	if dateIdx < 0 {
		return nil, fmt.Errorf("missing date column %q", src.DateColumn)
	}
	countryIdx := columnIndex(header, src.CountryColumn)
	if countryIdx < 0 {
		return nil, fmt.Errorf("missing country column %q", src.CountryColumn)
	}

	metricIdx := make(map[domain.Metric]int, len(columns))
	for m, col := range columns {
		if i := columnIndex(header, col); col != "" && i >= 0 {
			metricIdx[m] = i
		}
	}

	out := make(map[domain.Metric][]domain.RawRow, len(metricIdx))
	position := make(map[string]int)
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		country := cell(rec, countryIdx)
		date := cell(rec, dateIdx)
		pos, ok := position[country]
		if !ok {
			pos = len(position)
			position[country] = pos
			for m := range metricIdx {
				out[m] = append(out[m], domain.RawRow{Region: country, Cells: map[string]string{}})
			}
		}
		for m, i := range metricIdx {
			out[m][pos].Cells[date] = cell(rec, i)
		}
	}
	return out, nil
}

// ReadPopulation parses the population table: country in the first column,
// population in the last. Rows whose population does not parse are skipped,
// which later surfaces as an unknown population diagnostic.
func ReadPopulation(r io.Reader) (map[string]int64, error) {
	cr := newReader(r)
	if _, err := readHeader(cr); err != nil {
		return nil, err
	}

	pop := make(map[string]int64)
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if len(rec) < 2 {
			continue
		}
		n, ok := parsePopulation(rec[len(rec)-1])
		if !ok {
			continue
		}
		pop[strings.TrimSpace(rec[0])] = n
	}
	return pop, nil
}

// parsePopulation accepts integers and the "1234.0" form some exports use.
func parsePopulation(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, n > 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 1 || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
