package xoso

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ArowuTest/xoso-live-backend/internal/models"
)

// slotSelectors maps each prize slot to the cell class the live page uses
// for it. The eighth tier only exists on south/central pages; selecting it
// on a northern page simply matches nothing.
var slotSelectors = map[string]string{
	models.SlotSpecial: "td.giaidb",
	models.SlotFirst:   "td.giai1",
	models.SlotSecond:  "td.giai2",
	models.SlotThird:   "td.giai3",
	models.SlotFourth:  "td.giai4",
	models.SlotFifth:   "td.giai5",
	models.SlotSixth:   "td.giai6",
	models.SlotSeventh: "td.giai7",
	models.SlotEighth:  "td.giai8",
}

// codePattern matches a published prize number: 2 to 6 digits.
var codePattern = regexp.MustCompile(`^\d{2,6}$`)

// ParsePage extracts the prize numbers currently visible on a live page.
// Cells that still show the loading placeholder, or that are absent
// entirely, contribute nothing; extraction never errors on missing data.
func ParsePage(html []byte, region *models.Region) (models.SlotValues, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	observed := make(models.SlotValues)
	for _, slot := range region.SlotNames() {
		selector, ok := slotSelectors[slot]
		if !ok {
			continue
		}
		var codes []string
		doc.Find(selector).Each(func(_ int, cell *goquery.Selection) {
			codes = append(codes, extractCodes(cell)...)
		})
		if len(codes) > 0 {
			observed[slot] = codes
		}
	}
	return observed, nil
}

// extractCodes pulls the numeric codes out of one prize cell. Numbers sit
// in nested div/p/em elements while the draw is running, or as plain
// delimited text once the page settles.
func extractCodes(cell *goquery.Selection) []string {
	var codes []string
	appendCode := func(raw string) {
		code := strings.TrimSpace(raw)
		if codePattern.MatchString(code) {
			codes = append(codes, code)
		}
	}

	inner := cell.Find("div, p, em, span")
	if inner.Length() > 0 {
		inner.Each(func(_ int, el *goquery.Selection) {
			// only leaf elements carry a single number
			if el.Children().Length() == 0 {
				appendCode(el.Text())
			}
		})
	}
	if len(codes) > 0 {
		return codes
	}

	for _, field := range strings.FieldsFunc(cell.Text(), func(r rune) bool {
		return r == ' ' || r == '-' || r == ',' || r == '\n' || r == '\t'
	}) {
		appendCode(field)
	}
	return codes
}
