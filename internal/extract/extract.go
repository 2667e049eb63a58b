// Package extract turns raw page markup into typed values using an ordered
// list of candidate strategies, most specific first. The first strategy that
// yields a match wins; looser strategies are only reached when tighter ones
// find nothing, so incidental substrings in free text cannot shadow
// structured markup. Every strategy is pure: no network, no side effects.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"weighbridge/internal/domain"
)

// page bundles the parsed document with the raw markup so raw-text
// strategies keep working even when the markup fails to parse.
type page struct {
	doc *goquery.Document
	raw string
}

func parse(markup string) page {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		doc = nil
	}
	return page{doc: doc, raw: markup}
}

// text returns the page's visible text, falling back to the raw markup.
func (p page) text() string {
	if p.doc != nil {
		return p.doc.Text()
	}
	return p.raw
}

// identifierStrategy pulls item identifiers out of a page. Ordered by
// specificity in identifierStrategies.
type identifierStrategy struct {
	name string
	fn   func(p page) []domain.ItemID
}

var identifierStrategies = []identifierStrategy{
	{name: "header-labeled-column", fn: identifiersByHeaderLabel},
	{name: "fixed-column", fn: identifiersByColumnIndex},
	{name: "raw-text-scan", fn: identifiersByTextScan},
}

// Identifiers extracts item identifiers from markup, duplicates preserved
// in page order. Returns nil when no strategy matches.
func Identifiers(markup string) []domain.ItemID {
	p := parse(markup)
	for _, s := range identifierStrategies {
		if ids := s.fn(p); len(ids) > 0 {
			return ids
		}
	}
	return nil
}

// weightStrategy pulls a single weight out of a page. A strategy that
// matches but parses an out-of-range value reports not-found; it never falls
// through to a different part of itself.
type weightStrategy struct {
	name string
	fn   func(p page) (domain.WeightValue, bool)
}

var weightStrategies = []weightStrategy{
	{name: "label-cell-row", fn: weightByLabeledRow},
	{name: "labeled-element", fn: weightByLabeledElement},
	{name: "raw-text-proximity", fn: weightByTextProximity},
}

// Weight extracts a weight in pounds from markup. The boolean is false when
// no strategy yields an in-range value.
func Weight(markup string) (domain.WeightValue, bool) {
	p := parse(markup)
	for _, s := range weightStrategies {
		if w, ok := s.fn(p); ok {
			return w, true
		}
	}
	return 0, false
}
