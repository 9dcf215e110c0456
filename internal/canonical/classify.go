// Package canonical maps vendor field labels onto canonical spec keys and
// converts raw value strings into the canonical scale for each key.
package canonical

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/laser-ci/internal/model"
)

type rule struct {
	re  *regexp.Regexp
	key model.CanonicalKey
}

func r(expr string, key model.CanonicalKey) rule {
	return rule{re: regexp.MustCompile(expr), key: key}
}

// rules is evaluated top to bottom against a cleaned label; the first match
// wins, so narrower labels sit above the broad ones they overlap with.
var rules = []rule{
	r(`^(min(imum)?\.? (output |optical )?power|(output )?power,? min(imum)?\.?)$`, model.KeyOutputPowerMin),
	r(`^((output|optical|long-?term) )?(power )?stability( .*)?$|^ltp$|^power drift$`, model.KeyPowerStabilityPct),
	r(`^((rms|optical|intensity|power|output|amplitude) )*noise\b.*$`, model.KeyRMSNoisePct),
	r(`^((center|central|centre|emission|peak|nominal|laser|output) )?wavelengths?( (typ(ical)?\.?|nominal))?$|^λ$|^lambda$`, model.KeyWavelengthNM),
	r(`^m ?2$|^m\^2$|^m squared$|^(beam quality|beam quality factor|beam propagation ratio)( m ?2)?$|^m ?2 beam quality$`, model.KeyM2),
	r(`^(output )?beam (diameter|waist|size|width)\b.*$`, model.KeyBeamDiameterMM),
	r(`^((full|half)[- ]angle )?(beam )?divergence\b.*$`, model.KeyBeamDivergenceMrad),
	r(`^polari[sz]ation( (ratio|extinction ratio|direction|orientation|state))?$|^(polari[sz]ation )?extinction ratio$|^per$`, model.KeyPolarization),
	r(`^((spectral|emission|optical) )?line ?width( fwhm)?$|^fwhm$|^spectral (band)?width$`, model.KeyLinewidthMHz),
	r(`^analog(ue)?( mod(ulation|\.)?)?( (bandwidth|frequency|rate|input))?$|^am bandwidth$`, model.KeyModulationAnalogHz),
	r(`^((electronic|ttl|mechanical|internal) )?shutter$|^laser inhibit$`, model.KeyTTLShutter),
	r(`^(digital|ttl)( mod(ulation|\.)?)?( (bandwidth|frequency|rate|input))?$|^blanking rate$|^modulation( (depth|bandwidth|frequency))?$`, model.KeyModulationDigitalHz),
	r(`^fib(er|re)[- ]?(output|delivery|coupled|coupling|option)s?$|^fib(er|re)[- ]coupled output$`, model.KeyFiberOutput),
	r(`^(fib(er|re) )?na$|^(fib(er|re) )?numerical aperture$`, model.KeyFiberNA),
	r(`^(fib(er|re) )?(mode[- ]field diameter|mfd)$`, model.KeyFiberMFDUM),
	r(`^((control|computer|communication|digital) )?interfaces?$|^connectivity$`, model.KeyInterfaces),
	r(`^warm[- ]?up( time)?$`, model.KeyWarmupTimeMin),
	r(`^((laser |head |overall )?dimensions?|size|footprint)( l ?x ?w ?x ?h)?$`, model.KeyDimensionsMM),
	r(`^((max(imum)?\.?|nominal|typ(ical)?\.?|rated|cw|laser|optical|output|average|total) )*power( output)?$|^output$`, model.KeyOutputPowerNominal),
}

var (
	bracketed        = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)
	trailingFootnote = regexp.MustCompile(`\s+\d\)?$`)
	superscriptTail  = regexp.MustCompile(`[¹²³⁴⁵⁶⁷⁸⁹⁰]+$`)
	squaredM         = regexp.MustCompile(`(?:^|[^\p{L}])[Mm]\s*$`)
	labelSpaces      = regexp.MustCompile(`\s+`)
)

// CleanLabel folds a vendor label into the form the rule table expects:
// NFKC-normalized, lowercase, underscores as spaces, bracketed hints and
// footnote markers removed.
func CleanLabel(label string) string {
	s := trimSuperscripts(strings.TrimSpace(label))
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", " ")
	s = bracketed.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t*#:.-")
	s = trailingFootnote.ReplaceAllString(s, "")
	s = labelSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// trimSuperscripts drops trailing superscript footnote markers. A ² right
// after a standalone M belongs to the M² symbol and stays.
func trimSuperscripts(s string) string {
	loc := superscriptTail.FindStringIndex(s)
	if loc == nil {
		return s
	}
	head, tail := s[:loc[0]], s[loc[0]:]
	if strings.HasPrefix(tail, "²") && squaredM.MatchString(head) {
		return head + "²"
	}
	return head
}

// Classify maps a vendor label to its canonical key. Unrecognized labels
// report false.
func Classify(label string) (model.CanonicalKey, bool) {
	cleaned := CleanLabel(label)
	if cleaned == "" {
		return "", false
	}
	for _, rl := range rules {
		if rl.re.MatchString(cleaned) {
			return rl.key, true
		}
	}
	return "", false
}

var hintUnits = map[string]bool{
	"nm": true, "μm": true, "um": true, "mm": true, "cm": true, "pm": true,
	"mw": true, "w": true, "kw": true, "μw": true, "uw": true,
	"hz": true, "khz": true, "mhz": true, "ghz": true,
	"mrad": true, "μrad": true, "urad": true, "rad": true, "deg": true, "°": true,
	"%": true, "min": true, "s": true, "sec": true, "h": true,
}

// UnitHint returns the unit written in brackets on a label, e.g. "W" for
// "Output Power (W)". Labels without a recognizable unit return "".
func UnitHint(label string) string {
	for _, sm := range hintPattern.FindAllStringSubmatch(norm.NFKC.String(label), -1) {
		u := strings.TrimSpace(sm[1])
		if hintUnits[strings.ToLower(u)] {
			return u
		}
	}
	return ""
}

var hintPattern = regexp.MustCompile(`[\(\[]\s*([^\)\]]+?)\s*[\)\]]`)
