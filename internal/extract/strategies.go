package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"weighbridge/internal/domain"
)

// identifierHeaderLabels are the header-cell texts that mark a table column
// as the identifier column, checked case-insensitively by substring.
var identifierHeaderLabels = []string{"fnsku", "item id", "identifier", "barcode"}

// fallbackIdentifierColumn is the column consulted when no header label
// matches. Header match is preferred; the index is a heuristic for tables
// rendered without headers, where the identifier leads the row.
const fallbackIdentifierColumn = 0

func normalizeCell(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// identifiersByHeaderLabel finds tables whose header row labels an
// identifier column and collects valid identifiers from that column.
func identifiersByHeaderLabel(p page) []domain.ItemID {
	if p.doc == nil {
		return nil
	}
	var ids []domain.ItemID
	p.doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		col := -1
		table.Find("tr").First().Find("th, td").EachWithBreak(func(i int, cell *goquery.Selection) bool {
			label := normalizeCell(cell.Text())
			for _, want := range identifierHeaderLabels {
				if strings.Contains(label, want) {
					col = i
					return false
				}
			}
			return true
		})
		if col < 0 {
			return
		}
		table.Find("tr").Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
			cell := row.Find("td").Eq(col)
			if candidate := strings.TrimSpace(cell.Text()); domain.ValidItemID(candidate) {
				ids = append(ids, domain.ItemID(candidate))
			}
		})
	})
	return ids
}

// identifiersByColumnIndex reads a fixed column from every table row.
// Reached only when no header labels the identifier column.
func identifiersByColumnIndex(p page) []domain.ItemID {
	if p.doc == nil {
		return nil
	}
	var ids []domain.ItemID
	p.doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cell := row.Find("td").Eq(fallbackIdentifierColumn)
		if candidate := strings.TrimSpace(cell.Text()); domain.ValidItemID(candidate) {
			ids = append(ids, domain.ItemID(candidate))
		}
	})
	return ids
}

var identifierToken = regexp.MustCompile(`\b[A-Z][A-Z0-9]{9,}\b`)

// identifiersByTextScan scans the page's visible text for identifier-shaped
// tokens. Loosest strategy; last resort.
func identifiersByTextScan(p page) []domain.ItemID {
	var ids []domain.ItemID
	for _, candidate := range identifierToken.FindAllString(p.text(), -1) {
		if domain.ValidItemID(candidate) {
			ids = append(ids, domain.ItemID(candidate))
		}
	}
	return ids
}

// weightValue matches a free-standing number with an optional pound unit.
// The leading guard keeps digits embedded in identifiers from parsing as
// weights (RE2 has no lookbehind).
var weightValue = regexp.MustCompile(`(?:^|[^A-Za-z0-9.])([0-9]+(?:\.[0-9]+)?)\s*(?:lbs?|pounds?)?`)

// parsePounds extracts the first numeric value from s and range-checks it.
func parsePounds(s string) (domain.WeightValue, bool) {
	m := weightValue.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	w := domain.WeightValue(f)
	if !domain.ValidWeight(w) {
		return 0, false
	}
	return w, true
}

func isWeightLabel(s string) bool {
	return strings.Contains(strings.ToLower(s), "weight")
}

// weightByLabeledRow finds the first table row with an explicit weight label
// cell and parses the value from the remaining cells of that row. The first
// labeled row decides: an out-of-range value there means not-found.
func weightByLabeledRow(p page) (domain.WeightValue, bool) {
	if p.doc == nil {
		return 0, false
	}
	var w domain.WeightValue
	var found bool
	p.doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		labeled := false
		row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			if isWeightLabel(cell.Text()) {
				labeled = true
			}
		})
		if !labeled {
			return true
		}
		row.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			text := cell.Text()
			if isWeightLabel(text) {
				return true
			}
			if v, ok := parsePounds(text); ok {
				w, found = v, true
				return false
			}
			return true
		})
		return false // first labeled row decides
	})
	return w, found
}

// weightByLabeledElement reads definition lists and elements whose id or
// class names mention weight.
func weightByLabeledElement(p page) (domain.WeightValue, bool) {
	if p.doc == nil {
		return 0, false
	}
	var w domain.WeightValue
	var found bool

	p.doc.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if !isWeightLabel(dt.Text()) {
			return true
		}
		if v, ok := parsePounds(dt.Next().Text()); ok {
			w, found = v, true
		}
		return false
	})
	if found {
		return w, true
	}

	p.doc.Find(`[id*="weight"], [class*="weight"]`).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if v, ok := parsePounds(el.Text()); ok {
			w, found = v, true
			return false
		}
		return true
	})
	return w, found
}

// weightProximity finds a number (optionally unit-suffixed) within a short
// window after a weight keyword in unstructured text.
var weightProximity = regexp.MustCompile(`(?i)weight[^0-9]{0,40}([0-9]+(?:\.[0-9]+)?)\s*(?:lbs?|pounds?)?`)

// weightByTextProximity searches the page's visible text. Loosest strategy.
func weightByTextProximity(p page) (domain.WeightValue, bool) {
	m := weightProximity.FindStringSubmatch(p.text())
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	w := domain.WeightValue(f)
	if !domain.ValidWeight(w) {
		return 0, false
	}
	return w, true
}
