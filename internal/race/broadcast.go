package race

import (
	"regexp"
	"strings"

	"nextrace/internal/model"
)

// Class is a broadcast channel class.
type Class string

const (
	ClassTV        Class = "tv"
	ClassRadio     Class = "radio"
	ClassSatellite Class = "satellite"
)

// rule maps any uppercased token matching re to code.
type rule struct {
	re   *regexp.Regexp
	code string
}

// Normalization tables, evaluated top to bottom. A token matching no rule
// passes through uppercased.
var (
	tvRules = []rule{
		{regexp.MustCompile(`FOX\s*SPORTS\s*1|FS1`), "FS1"},
		// FS1 spellings were taken by the rule above.
		{regexp.MustCompile(`FOX`), "FOX"},
		{regexp.MustCompile(`NBC`), "NBC"},
		{regexp.MustCompile(`\bUSA\b`), "USA"},
		{regexp.MustCompile(`\bCW\b|THE\s*CW`), "CW"},
		{regexp.MustCompile(`PRIME|AMAZON`), "PRIME"},
	}
	radioRules = []rule{
		// NRN is the old name of MRN.
		{regexp.MustCompile(`NRN`), "MRN"},
		{regexp.MustCompile(`MRN`), "MRN"},
		{regexp.MustCompile(`PRN`), "PRN"},
	}
	satelliteRules = []rule{
		{regexp.MustCompile(`SIRIUS\s*XM|SIRIUSXM|^SXM$`), "SIRIUSXM"},
	}
)

// channel describes where a class reads its names from. Each entry of
// sources is a group of fields; the first non-empty field of a group is
// used, and groups are tried in order until one yields at least one code.
type channel struct {
	class   Class
	sources [][]string
	rules   []rule
}

var channels = []channel{
	{
		class: ClassTV,
		sources: [][]string{
			{model.FieldTelevisionBroadcaster},
			{model.FieldNetwork, model.FieldTVBroadcaster},
		},
		rules: tvRules,
	},
	{
		class: ClassRadio,
		sources: [][]string{
			{model.FieldRadioBroadcaster},
			{model.FieldRadio},
		},
		rules: radioRules,
	},
	{
		class: ClassSatellite,
		sources: [][]string{
			{model.FieldSatelliteBroadcaster},
		},
		rules: satelliteRules,
	},
}

// Separators between outlet names: comma, ampersand, slash, or the word "and".
var splitRe = regexp.MustCompile(`(?i)[,&/]|\band\b`)

// ResolveBroadcasts derives the canonical outlet codes of r for every class.
func ResolveBroadcasts(r model.Record) model.BroadcastSet {
	var set model.BroadcastSet
	for _, ch := range channels {
		codes := ch.resolve(r)
		switch ch.class {
		case ClassTV:
			set.TV = codes
		case ClassRadio:
			set.Radio = codes
		case ClassSatellite:
			set.Satellite = codes
		}
	}
	return set
}

func (ch channel) resolve(r model.Record) []string {
	for _, group := range ch.sources {
		_, raw, ok := r.First(group...)
		if !ok {
			continue
		}
		var codes orderedSet
		for _, tok := range SplitNames(raw) {
			codes.add(normalize(tok, ch.rules))
		}
		if len(codes) > 0 {
			return codes
		}
	}
	return []string{}
}

// SplitNames splits a free-text broadcaster field into trimmed, non-empty
// names.
func SplitNames(s string) []string {
	parts := splitRe.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeOutlet maps a single outlet name of the given class to its
// canonical code.
func NormalizeOutlet(class Class, name string) string {
	for _, ch := range channels {
		if ch.class == class {
			return normalize(name, ch.rules)
		}
	}
	return strings.ToUpper(strings.TrimSpace(name))
}

func normalize(name string, rules []rule) string {
	up := strings.ToUpper(strings.TrimSpace(name))
	if up == "" {
		return ""
	}
	for _, rl := range rules {
		if rl.re.MatchString(up) {
			return rl.code
		}
	}
	return up
}

// orderedSet keeps the first occurrence of each code.
type orderedSet []string

func (s *orderedSet) add(code string) {
	if code == "" {
		return
	}
	for _, c := range *s {
		if c == code {
			return
		}
	}
	*s = append(*s, code)
}
