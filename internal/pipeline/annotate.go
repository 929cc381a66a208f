package pipeline

import (
	"regexp"

	"labnorm/internal"
	"labnorm/internal/util"
)

type flagRule struct {
	token   string
	pattern *regexp.Regexp
	exclude *regexp.Regexp
}

func flag(token, pattern string) flagRule {
	return flagRule{token: token, pattern: regexp.MustCompile(`(?i)` + pattern)}
}

func flagExcept(token, pattern, exclude string) flagRule {
	r := flag(token, pattern)
	r.exclude = regexp.MustCompile(`(?i)` + exclude)
	return r
}

func (r flagRule) match(s string) bool {
	return r.pattern.MatchString(s) && (r.exclude == nil || !r.exclude.MatchString(s))
}

// Interpretive flags in priority order. "nc" marks results that could not be
// computed.
var flagRules = []flagRule{
	flag("nc", `^.*no.*(calc(ulable)?|proce(deix|dent|sada)?|rebu(t|des)?|concloent|codi|valorable|realitza(da|t|r)?|possible|m[ue|o]stra)`),
	flag("nc", `mostra.*(coagulada|hem[oòó](litzada|lisi)|rebutjada|insuficient|no.*[remesa|adient|estable|remitida]|contaminada|inade[quat|quada]|impedeix|vess?ada)`),
	flagExcept("nc", `anu(lat|l·lat|lada|l·lada)`, `\b(de|hipo)granulats?\b`),
	flag("nc", `re(compte|cuento|sultat).*in(suficiente?|determinat|ferior)`),
	flag("positiu", `pos(itiu|itiva)`),
	flagExcept("negatiu", `neg(atius?|ativa)`, `\bgram\b`),
	flag("normal", `(^|\s)normal(\s|$)`),
	flag("normal", `s(in|ense).*alteraci[oóò]n`),
	flagExcept("baix", `\bba(jo|ix)\b`, `\bno\b`),
	flagExcept("alt", `\balto?\b`, `\bno\b`),
	flag("microorganisme", `microorganisme\s?a[ïi]llat`),
}

const (
	n1Expr       = `-?(?:[.,]?[0-9]+)+`
	cmpExpr      = `(?:[<>]\s*=?\s*)?`
	unitExpr     = `[a-zA-Z]{1,4}\s?/\s?[a-zA-Z]{1,4}`
	exponentExpr = `(?: ?[Xx*] ?10(?:[Ee^][+-]?|[+-])[0-9]{1,2})|(?:[Ee][+-]?[0-9]{1,2})`
)

var (
	reAlphaOnly   = regexp.MustCompile(`^[a-zA-Z]+$`)
	reUnitsAfter  = regexp.MustCompile(`(?i)^(` + cmpExpr + n1Expr + `)\s*(` + unitExpr + `)$`)
	reUnitsBefore = regexp.MustCompile(`(?i)^(` + unitExpr + `)\s*(` + cmpExpr + n1Expr + `)$`)
	reLeadingPlus = regexp.MustCompile(`^\+\s*(` + n1Expr + `)$`)
	rePercent     = regexp.MustCompile(`^(` + n1Expr + `) *%$`)
	reExponent    = regexp.MustCompile(`^(` + n1Expr + `)(` + exponentExpr + `)$`)
)

// MatchFlag returns the interpretive token for a free-text result.
func MatchFlag(s string) (string, bool) {
	for _, r := range flagRules {
		if r.match(s) {
			return r.token, true
		}
	}
	return "", false
}

func extractAnnotations(rec *internal.LabRecord) {
	if token, ok := MatchFlag(rec.CleanResult); ok {
		rec.CleanResult = token
		rec.Annotate(internal.AnnotLiteral)
	}
	if len(rec.Comments) == 0 && reAlphaOnly.MatchString(rec.CleanResult) {
		rec.Annotate(internal.AnnotLiteral)
	}

	if m := reUnitsAfter.FindStringSubmatch(rec.CleanResult); m != nil {
		rec.CleanResult, rec.RawUnit = m[1], m[2]
		rec.Annotate(internal.AnnotUnits)
	} else if m := reUnitsBefore.FindStringSubmatch(rec.CleanResult); m != nil {
		rec.CleanResult, rec.RawUnit = m[2], m[1]
		rec.Annotate(internal.AnnotUnits)
	}

	if m := reLeadingPlus.FindStringSubmatch(rec.CleanResult); m != nil {
		rec.CleanResult = m[1]
		rec.Annotate(internal.AnnotFlag)
	}

	if m := rePercent.FindStringSubmatch(rec.CleanResult); m != nil {
		rec.CleanResult, rec.RawUnit = m[1], "%"
		rec.Annotate(internal.AnnotPercent)
	}

	if m := reExponent.FindStringSubmatch(rec.CleanResult); m != nil {
		rec.CleanResult = util.StandardizeNumber(m[1]) + m[2]
		rec.Annotate(internal.AnnotExponents)
	}
}
