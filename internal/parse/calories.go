package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vbonduro/nutriai/internal/domain"
)

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

var (
	kcalKeys      = []string{"kcal", "calories", "estimated_calories", "total_calories", "energy_kcal"}
	breakdownKeys = []string{"food_items", "items", "breakdown"}
	detailKeys    = []string{"description", "details", "notes"}

	number    = `(\d+(?:[.,]\d+)*)`
	unit      = `(?:kcal|kalorien|calories|calorie|cal)`
	unitLead  = `(?:\s+(?:for|per|in|für|pro)\b[^:=\n]{0,40}[:=]|\s*[:=]?)`
	qualifier = `(?:~|ca\.?|approx(?:imately)?\.?|about|around|roughly|etwa|rund|ungefähr)?`

	rangeBeforeUnitRe  = regexp.MustCompile(`(?i)` + number + `\s*(?:-|–|to|bis)\s*` + number + `\s*` + unit + `\b`)
	numberBeforeUnitRe = regexp.MustCompile(`(?i)` + number + `\s*` + unit + `\b`)
	unitBeforeNumberRe = regexp.MustCompile(`(?i)\b` + unit + `\b` + unitLead + `\s*` + qualifier + `\s*[-−]?` + number)
	bareNumberRe       = regexp.MustCompile(number)
	confidenceRe       = regexp.MustCompile(`(?i)(?:confidence|konfidenz|sicherheit|vertrauen)\W{0,3}(\p{L}+)`)
	leadingConfRe      = regexp.MustCompile(`(?i)\b(\p{L}+)\s+(?:confidence|konfidenz|sicherheit)`)
)

// Calories extracts a calorie estimate. An explicit JSON field wins, then an
// integer attached to a calorie unit, then the first plausible bare integer.
// The bare fallback only runs when no number is attached to a unit at all.
// It never defaults to zero.
func Calories(text string, maxKcal int) (domain.CalorieEstimate, error) {
	if obj, ok := jsonObject(text); ok {
		if est, found, err := caloriesFromJSON(obj, text, maxKcal); found {
			return est, err
		}
	}

	kcal, matched, ok := unitAdjacent(text, maxKcal)
	if matched && !ok {
		return domain.CalorieEstimate{}, &domain.CalorieParseError{Reason: fmt.Sprintf("calorie value outside (0,%d]", maxKcal)}
	}
	if !matched {
		kcal, ok = firstBareInteger(text, maxKcal)
	}
	if !ok {
		return domain.CalorieEstimate{}, &domain.CalorieParseError{Reason: "no plausible calorie value in response"}
	}

	return domain.CalorieEstimate{
		Kcal:       kcal,
		Confidence: confidenceFromText(text),
		Details:    strings.TrimSpace(text),
	}, nil
}

// jsonObject returns the outermost {...} span when it is valid JSON. Models
// often wrap JSON in prose or code fences.
func jsonObject(text string) (gjson.Result, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return gjson.Result{}, false
	}
	candidate := text[start : end+1]
	if !gjson.Valid(candidate) {
		return gjson.Result{}, false
	}
	return gjson.Parse(candidate), true
}

func caloriesFromJSON(obj gjson.Result, text string, maxKcal int) (domain.CalorieEstimate, bool, error) {
	var value gjson.Result
	for _, k := range kcalKeys {
		if v := obj.Get(k); v.Exists() {
			value = v
			break
		}
	}
	if !value.Exists() {
		return domain.CalorieEstimate{}, false, nil
	}

	kcal, ok := jsonNumber(value)
	if !ok {
		return domain.CalorieEstimate{}, true, &domain.CalorieParseError{Reason: fmt.Sprintf("calorie field %q is not a number", value.Raw)}
	}
	if kcal < 0 || kcal > maxKcal {
		return domain.CalorieEstimate{}, true, &domain.CalorieParseError{Reason: fmt.Sprintf("calorie value %d outside [0,%d]", kcal, maxKcal)}
	}

	est := domain.CalorieEstimate{
		Kcal:       kcal,
		Confidence: confidenceFromJSON(obj.Get("confidence"), text),
		Breakdown:  breakdown(obj),
		Details:    strings.TrimSpace(text),
	}
	for _, k := range detailKeys {
		if v := obj.Get(k); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			est.Details = strings.TrimSpace(v.Str)
			break
		}
	}
	return est, true, nil
}

func jsonNumber(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		return int(math.Round(v.Num)), true
	case gjson.String:
		n, ok := parseNumber(strings.TrimSpace(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(v.Str)), "kcal")))
		return n, ok
	}
	return 0, false
}

func breakdown(obj gjson.Result) []string {
	for _, k := range breakdownKeys {
		arr := obj.Get(k)
		if !arr.IsArray() {
			continue
		}
		var out []string
		for _, item := range arr.Array() {
			if s := breakdownItem(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func breakdownItem(item gjson.Result) string {
	if item.Type == gjson.String {
		return strings.TrimSpace(item.Str)
	}
	if !item.IsObject() {
		return ""
	}
	name := strings.TrimSpace(item.Get("name").String())
	if name == "" {
		name = strings.TrimSpace(item.Get("food").String())
	}
	for _, k := range kcalKeys {
		if v := item.Get(k); v.Exists() {
			if n, ok := jsonNumber(v); ok {
				return fmt.Sprintf("%s (%d kcal)", name, n)
			}
		}
	}
	return name
}

// unitAdjacent finds the earliest plausible number attached to a calorie
// unit or keyword. A range such as "400-500 kcal" yields its midpoint.
// matched reports whether any unit-attached number was seen, plausible or not.
func unitAdjacent(text string, maxKcal int) (kcal int, matched, ok bool) {
	type candidate struct {
		pos  int
		kcal int
	}
	var best *candidate
	consider := func(pos, n int, negative bool) {
		matched = true
		if negative || n <= 0 || n > maxKcal {
			return
		}
		if best == nil || pos < best.pos {
			best = &candidate{pos: pos, kcal: n}
		}
	}

	for _, m := range rangeBeforeUnitRe.FindAllStringSubmatchIndex(text, -1) {
		lo, ok1 := parseNumber(text[m[2]:m[3]])
		hi, ok2 := parseNumber(text[m[4]:m[5]])
		if ok1 && ok2 && lo <= hi {
			consider(m[0], (lo+hi)/2, negativeAt(text, m[2]))
		}
	}
	for _, re := range []*regexp.Regexp{numberBeforeUnitRe, unitBeforeNumberRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if n, ok := parseNumber(text[m[2]:m[3]]); ok {
				consider(m[0], n, negativeAt(text, m[2]))
			}
		}
	}

	if best == nil {
		return 0, matched, false
	}
	return best.kcal, true, true
}

// negativeAt reports whether the number starting at i carries a minus sign.
// A dash directly after a digit is a range separator, not a sign.
func negativeAt(text string, i int) bool {
	before := strings.TrimRight(text[:i], " ")
	var sign string
	switch {
	case strings.HasSuffix(before, "-"):
		sign = "-"
	case strings.HasSuffix(before, "−"):
		sign = "−"
	default:
		return false
	}
	rest := strings.TrimRight(strings.TrimSuffix(before, sign), " ")
	return rest == "" || rest[len(rest)-1] < '0' || rest[len(rest)-1] > '9'
}

// firstBareInteger returns the first integer token in (0, maxKcal]. Decimal
// and negative tokens are skipped.
func firstBareInteger(text string, maxKcal int) (int, bool) {
	for _, loc := range bareNumberRe.FindAllStringIndex(text, -1) {
		tok := text[loc[0]:loc[1]]
		if isDecimal(tok) || negativeAt(text, loc[0]) {
			continue
		}
		n, ok := parseNumber(tok)
		if ok && n > 0 && n <= maxKcal {
			return n, true
		}
	}
	return 0, false
}

// parseNumber reads "450", "1,200", "1.200" and "450.5" (truncated). A
// separator followed by exactly three digits is a thousands separator.
func parseNumber(tok string) (int, bool) {
	if tok == "" {
		return 0, false
	}
	groups := strings.FieldsFunc(tok, func(r rune) bool { return r == '.' || r == ',' })
	if len(groups) == 0 {
		return 0, false
	}
	digits := groups[0]
	if !isDecimal(tok) {
		digits = strings.Join(groups, "")
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDecimal(tok string) bool {
	groups := strings.FieldsFunc(tok, func(r rune) bool { return r == '.' || r == ',' })
	if len(groups) < 2 {
		return false
	}
	if len(groups[0]) > 3 {
		return true
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return true
		}
	}
	return false
}

func confidenceFromJSON(v gjson.Result, text string) string {
	switch v.Type {
	case gjson.Number:
		switch {
		case v.Num >= 0.75:
			return ConfidenceHigh
		case v.Num >= 0.4:
			return ConfidenceMedium
		default:
			return ConfidenceLow
		}
	case gjson.String:
		if c, ok := confidenceWord(v.Str); ok {
			return c
		}
	}
	return confidenceFromText(text)
}

func confidenceFromText(text string) string {
	for _, re := range []*regexp.Regexp{confidenceRe, leadingConfRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			if c, ok := confidenceWord(m[1]); ok {
				return c
			}
		}
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "hoch") || (strings.Contains(lower, "sicher") && !strings.Contains(lower, "unsicher")):
		return ConfidenceHigh
	case strings.Contains(lower, "niedrig") || strings.Contains(lower, "unsicher"):
		return ConfidenceLow
	}
	return ConfidenceMedium
}

func confidenceWord(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "hoch", "sicher":
		return ConfidenceHigh, true
	case "medium", "moderate", "mittel":
		return ConfidenceMedium, true
	case "low", "niedrig", "gering", "unsicher":
		return ConfidenceLow, true
	}
	return "", false
}
