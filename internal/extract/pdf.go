package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/laser-ci/internal/canonical"
	"github.com/sells-group/laser-ci/internal/model"
)

var (
	separatorCell = regexp.MustCompile(`^:?-{2,}:?$`)
	fixedSplit    = regexp.MustCompile(`\s{2,}|\t+`)
	modelRow      = regexp.MustCompile(`^(?:L[BCPX]X|LBX|LCX)[- ]?\d+`)
	hasDigit      = regexp.MustCompile(`\d`)
)

var headerKeywords = []string{"wavelength", "power", "linewidth", "beam", "modulation", "model", "polarization", "noise", "stability"}

// FromPDFText extracts spec entries from a table-aware text rendering of a
// PDF: pipe tables, fixed-width tables, then "label: value" lines and the
// collapsed-matrix fallback. Prose is scanned only when nothing else matched.
func FromPDFText(text string) model.RawSpecMap {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	out := model.RawSpecMap{}
	for _, block := range tableBlocks(lines) {
		parseTableBlock(block, out)
	}
	for _, line := range lines {
		if strings.Contains(line, "|") {
			continue
		}
		if label, value, ok := SplitLabelValue(cleanText(line)); ok {
			out[label] = model.Str(value)
		}
	}
	parseConcatenated(cleanText(text), out)

	if len(out) == 0 {
		scanProse(text, out)
	}
	return out
}

// tableBlocks groups consecutive table-like lines into row blocks. Pipe rows
// and fixed-width rows form separate blocks.
func tableBlocks(lines []string) [][][]string {
	var (
		blocks  [][][]string
		current [][]string
		piped   bool
	)
	flush := func() {
		if len(current) >= 2 || (len(current) == 1 && piped) {
			blocks = append(blocks, current)
		}
		current = nil
	}
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		isPipe := strings.Count(line, "|") >= 2 || (strings.Contains(line, "|") && !strings.HasPrefix(line, "|"))
		var cells []string
		switch {
		case isPipe:
			cells = splitPipeRow(line)
		case line != "" && !strings.Contains(line, ":"):
			cells = fixedWidthCells(line)
		}
		if len(cells) < 2 {
			flush()
			continue
		}
		if len(current) > 0 && piped != isPipe {
			flush()
		}
		piped = isPipe
		current = append(current, cells)
	}
	flush()
	return blocks
}

func splitPipeRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = cleanText(strings.ReplaceAll(p, "<br>", " "))
	}
	return cells
}

func fixedWidthCells(line string) []string {
	var cells []string
	for _, p := range fixedSplit.Split(line, -1) {
		if p = cleanText(p); p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	seen := false
	for _, c := range cells {
		if c == "" {
			continue
		}
		if !separatorCell.MatchString(c) {
			return false
		}
		seen = true
	}
	return seen
}

// looksLikeHeader treats a row as a header when it opens with a header word,
// or when several cells name spec columns and none carries a number.
func looksLikeHeader(cells []string) bool {
	first := strings.ToLower(cleanName(cells[0]))
	if isHeaderName(first) || first == "model" || first == "item" {
		return true
	}
	keywordCells := 0
	for _, c := range cells {
		if hasDigit.MatchString(c) {
			return false
		}
		lower := strings.ToLower(c)
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				keywordCells++
				break
			}
		}
	}
	return keywordCells >= 2
}

func parseTableBlock(block [][]string, out model.RawSpecMap) {
	var headers []string
	for i, cells := range block {
		if isSeparatorRow(cells) {
			if headers == nil && i > 0 {
				headers = block[i-1]
			}
			continue
		}
		if i+1 < len(block) && isSeparatorRow(block[i+1]) {
			headers = cells
			continue
		}
		if headers == nil && looksLikeHeader(cells) {
			headers = cells
			continue
		}

		name := cleanName(cells[0])
		if modelRow.MatchString(name) && len(headers) > 1 {
			for j := 1; j < len(cells) && j < len(headers); j++ {
				if isPlaceholder(cells[j]) {
					continue
				}
				out[name+"_"+headerVocabulary(headers[j])] = model.Str(cells[j])
			}
			continue
		}
		addRow(cells, headers, out)
	}
}

var headerVocab = []struct {
	match []string
	name  string
}{
	{[]string{"wavelength"}, "wavelength"},
	{[]string{"linewidth", "line width"}, "linewidth"},
	{[]string{"power stability", "stability"}, "power_stability"},
	{[]string{"noise"}, "rms_noise"},
	{[]string{"output power", "power"}, "output_power"},
	{[]string{"beam waist", "beam diameter"}, "beam_diameter"},
	{[]string{"beam quality", "m²", "m2"}, "beam_quality"},
	{[]string{"divergence"}, "beam_divergence"},
	{[]string{"polarization", "polarisation"}, "polarization"},
	{[]string{"digital"}, "digital_modulation"},
	{[]string{"analog"}, "analog_modulation"},
}

// headerVocabulary folds a datasheet column header into a short spec name,
// keeping any bracketed unit so the canonicalizer can still scale the value.
func headerVocabulary(header string) string {
	h := cleanText(header)
	if h == "" {
		return "model"
	}
	lower := strings.ToLower(h)
	for _, v := range headerVocab {
		for _, m := range v.match {
			if strings.Contains(lower, m) {
				if hint := canonical.UnitHint(h); hint != "" {
					return v.name + " (" + hint + ")"
				}
				return v.name
			}
		}
	}
	return h
}
