// Package extract turns raw vendor documents into flat RawSpecMaps.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/laser-ci/internal/model"
)

// ErrNoContent is returned when a document yields no spec entries at all.
var ErrNoContent = eris.New("extract: no extractable content")

// longCellThreshold marks a single cell long enough to be a collapsed
// product matrix rather than one value.
const longCellThreshold = 500

// Extract dispatches on the document's content type. A document carrying a
// pre-extracted map is returned as-is, minus placeholder values.
func Extract(doc model.RawDocument) (model.RawSpecMap, error) {
	if len(doc.RawSpecs) > 0 {
		out := make(model.RawSpecMap, len(doc.RawSpecs))
		for k, v := range doc.RawSpecs {
			if v.Kind == model.RawString && isPlaceholder(v.Str) {
				continue
			}
			out[k] = v
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	var (
		out model.RawSpecMap
		err error
	)
	switch doc.ContentType {
	case model.ContentTypeHTML:
		out, err = FromHTML(doc.Text)
	case model.ContentTypePDFText:
		out = FromPDFText(doc.Text)
	default:
		return nil, eris.Errorf("extract: unsupported content type %q for document %s", doc.ContentType, doc.ID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "extract: document %s", doc.ID)
	}
	if len(out) == 0 {
		return nil, eris.Wrapf(ErrNoContent, "document %s", doc.ID)
	}
	return out, nil
}

// Merge folds the maps of several documents together in fetch order, so a
// later-fetched document overrides an earlier one on identical keys.
func Merge(docs []model.RawDocument, specs []model.RawSpecMap) model.RawSpecMap {
	idx := make([]int, len(docs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return docs[idx[a]].FetchedAt.Before(docs[idx[b]].FetchedAt)
	})

	out := model.RawSpecMap{}
	for _, i := range idx {
		if i >= len(specs) {
			continue
		}
		for k, v := range specs[i] {
			out[k] = v
		}
	}
	return out
}

// SimplePairs reads short "label: value" lines from plain text.
func SimplePairs(text string) model.RawSpecMap {
	out := model.RawSpecMap{}
	for _, line := range strings.Split(text, "\n") {
		line = cleanText(line)
		if len(line) >= 120 {
			continue
		}
		if label, value, ok := SplitLabelValue(line); ok {
			out[label] = model.Str(value)
		}
	}
	return out
}

var placeholders = map[string]bool{
	"":      true,
	"-":     true,
	"–":     true,
	"—":     true,
	"--":    true,
	"n/a":   true,
	"tbd":   true,
	"tba":   true,
	"/":     true,
	"n.a.":  true,
	"—/—":   true,
	"-/-":   true,
	"(tbd)": true,
}

func isPlaceholder(v string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(v))]
}

var (
	whitespace   = regexp.MustCompile(`\s+`)
	footnoteTail = regexp.MustCompile(`(?:\s*[*†‡]+|\s*[¹²³⁴⁵⁶⁷⁸⁹⁰]+|\s+\d\))$`)
	squaredM     = regexp.MustCompile(`(?:^|[^\p{L}])[Mm]$`)
)

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// cleanName tidies a field name. Bracketed unit hints stay, since the
// canonicalizer reads them; footnote markers and trailing colons go.
func cleanName(s string) string {
	s = stripFootnote(cleanText(s))
	s = strings.TrimRight(s, ": ")
	s = strings.Trim(s, "*# ")
	return s
}

// stripFootnote removes one trailing footnote marker. The ² of an M² symbol
// ("Beam Quality M²") is not a footnote.
func stripFootnote(s string) string {
	loc := footnoteTail.FindStringIndex(s)
	if loc == nil {
		return s
	}
	head := s[:loc[0]]
	tail := strings.TrimSpace(s[loc[0]:])
	if strings.HasPrefix(tail, "²") && squaredM.MatchString(strings.TrimRight(head, " ")) {
		return strings.TrimRight(head, " ") + "²"
	}
	return head
}

var (
	ratioColon = regexp.MustCompile(`\d\s*:\s*\d`)
	ratioPair  = regexp.MustCompile(`^([^:]+?)\s*:\s*([<>≤≥]?\s*\d+(?:\.\d+)?\s*:\s*\d+.*)$`)
)

// SplitLabelValue splits "label: value", never on the colon inside a ratio
// such as 50:1. A line whose only colon belongs to a ratio is not split.
func SplitLabelValue(line string) (string, string, bool) {
	line = strings.TrimSpace(strings.TrimLeft(line, "•·-*# \t"))
	var label, value string
	if sm := ratioPair.FindStringSubmatch(line); sm != nil {
		label, value = sm[1], sm[2]
	} else {
		idx := strings.Index(line, ":")
		if idx <= 0 {
			return "", "", false
		}
		if loc := ratioColon.FindStringIndex(line); loc != nil && loc[0] <= idx && idx < loc[1] {
			return "", "", false
		}
		label, value = line[:idx], line[idx+1:]
	}

	label = strings.Trim(cleanName(label), "*#")
	value = cleanText(value)
	if label == "" || len(label) >= 100 || isPlaceholder(value) || strings.HasPrefix(value, "//") {
		return "", "", false
	}
	return label, value, true
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
