package domain

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalizer canonicalizes raw rows. Build one per run with NewNormalizer;
// it holds no state that changes between rows.
type Normalizer struct {
	aliases map[string]string // folded alias -> canonical name
	layouts []string
}

// NewNormalizer prepares an alias table and date layouts for NormalizeRow.
// Alias keys are matched case-insensitively after Unicode normalization.
func NewNormalizer(aliases map[string]string, layouts []string) *Normalizer {
	folded := make(map[string]string, len(aliases))
	for from, to := range aliases {
		folded[foldName(from)] = cleanName(to)
	}
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	return &Normalizer{aliases: folded, layouts: layouts}
}

// CanonicalRegion applies the alias table to a region name.
func (n *Normalizer) CanonicalRegion(name string) string {
	name = cleanName(name)
	if to, ok := n.aliases[foldName(name)]; ok {
		return to
	}
	return name
}

// NormalizeRow canonicalizes the region name, keeps only date columns and
// parses their cells. Columns whose label is not a date are dropped without
// a diagnostic. Unparseable non-empty cells count as 0 and are reported.
func (n *Normalizer) NormalizeRow(metric Metric, raw RawRow) (NormalizedRow, []Diagnostic) {
	row := NormalizedRow{
		Region:    n.CanonicalRegion(raw.Region),
		SubRegion: cleanName(raw.SubRegion),
		Counts:    make(map[Day]int64, len(raw.Cells)),
	}

	var diags []Diagnostic
	for label, cell := range raw.Cells {
		day, ok := ParseDay(strings.TrimSpace(label), n.layouts)
		if !ok {
			continue
		}
		count, ok := parseCountOrZero(cell)
		if !ok {
			diags = append(diags, Diagnostic{
				Country: row.Region,
				Metric:  metric,
				Kind:    KindMalformedValue,
				Detail:  fmt.Sprintf("%s %s: %q", subRegionLabel(row.SubRegion), day, cell),
			})
		}
		// Two labels can spell the same day ("3/1/20", "2020-03-01"); keep the larger.
		if prev, dup := row.Counts[day]; !dup || count > prev {
			row.Counts[day] = count
		}
	}

	sortDiagnostics(diags)
	return row, diags
}

// parseCountOrZero parses a cell as a non-negative integer count. Empty
// cells are a valid zero. It reports false when non-empty text could not be
// parsed; the returned count is then 0.
func parseCountOrZero(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some feeds write counts as "12.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, false
		}
		v = int64(f)
	}
	if v < 0 {
		return 0, true
	}
	return v, true
}

// cleanName trims and collapses inner whitespace.
func cleanName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func foldName(s string) string {
	return cases.Fold().String(cleanName(s))
}

func subRegionLabel(sub string) string {
	if sub == "" {
		return "(country)"
	}
	return sub
}
