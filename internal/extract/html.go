package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/laser-ci/internal/model"
)

// maxColspan bounds colspan expansion of malformed cells.
const maxColspan = 20

// FromHTML extracts spec entries from an HTML page: tables first, then list
// and definition-list pairs, then label/value class pairs. Prose is scanned
// only when none of those produced anything.
func FromHTML(src string) (model.RawSpecMap, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	doc.Find("script, style, noscript, template").Remove()

	out := model.RawSpecMap{}
	doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		extractTable(t, out)
	})
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		if li.Closest("table").Length() > 0 {
			return
		}
		// Nested lists are read through their own items.
		if li.Find("li").Length() > 0 {
			return
		}
		if label, value, ok := SplitLabelValue(cleanText(li.Text())); ok {
			out[label] = model.Str(value)
		}
	})
	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		extractDefinitionList(dl, out)
	})
	doc.Find("[class*='label'], [class*='spec-name']").Each(func(_ int, s *goquery.Selection) {
		if s.Is("table, tr, td, th") || s.Closest("table").Length() > 0 {
			return
		}
		value := s.NextFiltered("[class*='value']")
		if value.Length() == 0 {
			return
		}
		label := cleanName(s.Text())
		v := cleanText(value.Text())
		if label == "" || isPlaceholder(v) {
			return
		}
		out[label] = model.Str(v)
	})

	if len(out) == 0 {
		body := doc.Find("body")
		if body.Length() == 0 {
			body = doc.Selection
		}
		body.Find("table").Remove()
		text := body.Text()
		scanProse(text, out)
		if len(out) == 0 {
			for k, v := range SimplePairs(blockText(body)) {
				out[k] = v
			}
		}
	}
	return out, nil
}

func extractTable(t *goquery.Selection, out model.RawSpecMap) {
	rows := t.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(t)
	})
	if rows.Length() == 0 {
		return
	}

	var headers []string
	skip := map[int]bool{}
	headRows := rows.FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.ParentsFiltered("thead").Length() > 0
	})
	if headRows.Length() > 0 {
		headers = rowCells(headRows.Last())
		rows.Each(func(i int, tr *goquery.Selection) {
			if tr.ParentsFiltered("thead").Length() > 0 {
				skip[i] = true
			}
		})
	} else if first := rows.First(); first.ChildrenFiltered("th").Length() > 1 {
		headers = rowCells(first)
		skip[0] = true
	}

	width := 0
	rows.Each(func(i int, tr *goquery.Selection) {
		if !skip[i] {
			if n := len(rowCells(tr)); n > width {
				width = n
			}
		}
	})
	headers = alignHeaders(headers, width)

	rows.Each(func(i int, tr *goquery.Selection) {
		if skip[i] {
			return
		}
		addRow(rowCells(tr), headers, out)
	})
}

// addRow maps one table row. Shared by the HTML and PDF table readers.
func addRow(cells []string, headers []string, out model.RawSpecMap) {
	if len(cells) == 1 && len(cells[0]) > longCellThreshold {
		parseConcatenated(cells[0], out)
		return
	}
	if len(cells) < 2 {
		return
	}
	name := cleanName(cells[0])
	if name == "" || isHeaderName(name) {
		return
	}
	if mentionsListing(name) && parseConcatenated(strings.Join(cells, " "), out) {
		return
	}

	if len(headers) > 2 {
		roles := headerRoles(headers)
		unit := ""
		for j, r := range roles {
			if r == roleUnit && j < len(cells) && !isPlaceholder(cells[j]) {
				unit = cells[j]
			}
		}
		for j := 1; j < len(cells) && j < len(headers); j++ {
			v := cells[j]
			if roles[j] == roleUnit || isPlaceholder(v) {
				continue
			}
			out[columnKey(name, headers[j], roles[j])] = model.Str(withUnit(v, unit))
		}
		return
	}

	values := make([]string, 0, len(cells)-1)
	for _, v := range cells[1:] {
		if !isPlaceholder(v) {
			values = append(values, v)
		}
	}
	switch len(values) {
	case 0:
	case 1:
		if len(values[0]) > longCellThreshold && parseConcatenated(values[0], out) {
			return
		}
		out[name] = model.Str(values[0])
	default:
		out[name] = model.List(values...)
	}
}

type columnRole int

const (
	roleProduct columnRole = iota
	roleNominal
	roleMin
	roleMax
	roleUnit
)

// columnRoles names the header cells of a single-product parameter table.
// Any other header is taken to name a product.
var columnRoles = map[string]columnRole{
	"value": roleNominal, "values": roleNominal, "typ": roleNominal, "typ.": roleNominal,
	"typical": roleNominal, "nominal": roleNominal, "nom.": roleNominal,
	"min": roleMin, "min.": roleMin, "minimum": roleMin,
	"max": roleMax, "max.": roleMax, "maximum": roleMax,
	"unit": roleUnit, "units": roleUnit, "unit(s)": roleUnit,
}

func headerRoles(headers []string) []columnRole {
	roles := make([]columnRole, len(headers))
	for j, h := range headers {
		if j > 0 {
			roles[j] = columnRoles[strings.ToLower(cleanText(h))]
		}
	}
	return roles
}

// columnKey names a cell of a wide table. Nominal values keep the plain row
// name; min and max get a suffix the canonicalizer reads ("Output Power, min").
func columnKey(name, header string, role columnRole) string {
	switch role {
	case roleNominal:
		return name
	case roleMin:
		return name + ", min"
	case roleMax:
		return name + ", max"
	}
	if h := cleanText(header); h != "" {
		return name + "_" + h
	}
	return name
}

func withUnit(v, unit string) string {
	if unit == "" || strings.HasSuffix(strings.ToLower(v), strings.ToLower(unit)) {
		return v
	}
	return v + " " + unit
}

// rowCells returns a row's cell texts with colspans expanded.
func rowCells(tr *goquery.Selection) []string {
	var cells []string
	tr.ChildrenFiltered("td, th").Each(func(_ int, c *goquery.Selection) {
		text := cleanText(c.Text())
		span := 1
		if v, ok := c.Attr("colspan"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 1 {
				span = min(n, maxColspan)
			}
		}
		for range span {
			cells = append(cells, text)
		}
	})
	return cells
}

// alignHeaders right-aligns a header row that is narrower than the data,
// which happens when the first header cell spans rows of a multi-level head.
func alignHeaders(headers []string, width int) []string {
	if len(headers) == 0 || len(headers) >= width {
		return headers
	}
	padded := make([]string, width-len(headers), width)
	return append(padded, headers...)
}

func extractDefinitionList(dl *goquery.Selection, out model.RawSpecMap) {
	var label string
	dl.Children().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "dt":
			label = cleanName(c.Text())
		case "dd":
			v := cleanText(c.Text())
			if label != "" && !isPlaceholder(v) {
				out[label] = model.Str(v)
			}
			label = ""
		}
	})
}

// blockText renders text with a newline after each block element so
// line-oriented parsers can read it.
func blockText(s *goquery.Selection) string {
	s.Find("p, div, li, br, h1, h2, h3, h4, h5, h6, tr, dt, dd").Each(func(_ int, el *goquery.Selection) {
		el.AppendHtml("\n")
	})
	return s.Text()
}

var headerNames = map[string]bool{
	"parameter":      true,
	"parameters":     true,
	"specification":  true,
	"specifications": true,
	"spec":           true,
	"specs":          true,
	"feature":        true,
	"features":       true,
}

func isHeaderName(name string) bool {
	return headerNames[strings.ToLower(name)]
}

func mentionsListing(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "wavelength") || strings.Contains(lower, "power") || strings.Contains(lower, "model")
}
