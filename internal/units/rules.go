package units

import (
	"regexp"
	"strings"

	"labnorm/internal/util"
)

// Rule maps every raw spelling matched by Pattern to Token. A raw unit that
// also matches Exclude is left for later rules.
type Rule struct {
	Token   string
	Pattern *regexp.Regexp
	Exclude *regexp.Regexp
}

func (r Rule) Match(raw string) bool {
	if !r.Pattern.MatchString(raw) {
		return false
	}
	return r.Exclude == nil || !r.Exclude.MatchString(raw)
}

// Table is evaluated in order and the first matching rule wins. A token may
// appear more than once.
type Table []Rule

func rule(token, pattern string) Rule {
	return Rule{Token: token, Pattern: regexp.MustCompile(`(?i)` + pattern)}
}

func ruleExcept(token, pattern, exclude string) Rule {
	r := rule(token, pattern)
	r.Exclude = regexp.MustCompile(`(?i)` + exclude)
	return r
}

// Resolve returns the canonical token of the first rule matching raw.
func (t Table) Resolve(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	for _, r := range t {
		if r.Match(raw) {
			return r.Token, true
		}
	}
	return "", false
}

// Tokens lists the distinct canonical tokens in table order.
func (t Table) Tokens() []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(t))
	for _, r := range t {
		if seen[r.Token] {
			continue
		}
		seen[r.Token] = true
		out = append(out, r.Token)
	}
	return out
}

var (
	reSlashSpaces   = regexp.MustCompile(`\s*/\s*`)
	reTrailingPunct = regexp.MustCompile(`[.,;:!?\-_=*'"]+$`)
)

// Clean applies the whitespace and punctuation normalization kept on units no
// rule resolves.
func Clean(raw string) string {
	s := util.CollapseSpaces(util.Fold(raw))
	s = reSlashSpaces.ReplaceAllString(s, "/")
	s = reTrailingPunct.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Canonical cleans raw and resolves it against Rules. Unresolved units come
// back cleaned with ok set to false.
func Canonical(raw string) (string, bool) {
	s := Clean(raw)
	if token, ok := Rules.Resolve(s); ok {
		return token, true
	}
	return s, false
}

// Rules is the unit harmonization table.
var Rules = Table{
	rule("%", `^(([a-zA-Z\d]+(,[a-zA-Z\d]+)*)?[\s]?%.*|fracci[oó])$`),
	rule("ua", `^(u\.?a|a\.?u|u[\.\s]?arb.*)$`),
	rule("ui", `^([\d]+(,[\d]+)*)?[\s]?(u\.?i|i\.?u)$`),
	rule("uc", `^(uc|cu)$`),
	rule("ia", `^(ia|ai)$`),
	rule("µg/dl", `^([a-zA-Z\d]+(,[a-zA-Z\d]+)*)?[\s]?\(?[â]?(micro|mc|[æáµu]|um|mu)g[/7\s]?(dl\s?[a-zA-Z\d\(]*|100\s?ml)$`),
	rule("µg/ml", `^([a-zA-Z\d]+(,[a-zA-Z\d]+)*)?[\s]?\(?[â]?(micro|mc|[æáµu]|um|mu)g[/7\s]?ml\s?[a-zA-Z\d\(]*$`),
	rule("µg/l", `^([a-zA-Z\d]+(,[a-zA-Z\d]+)*)?[\s]?\(?[â]?(micro|mc|[æáµu]|um|mu)g[/7\s]?l\s?[a-zA-Z\d\(]*$`),
	rule("mg/dl", `^([a-zA-Z\d]+([,-][a-zA-Z\d]+)*)?[\s]?\(?mq?gr?[/7\s]?(dl\s?[a-zA-Z\d]*|100\s?ml)$`),
	rule("mg/ml", `^([a-zA-Z\d]+(,[a-zA-Z\d]+)*)?[\s]?\(?mgr?[/7\s]?ml\s?[a-zA-Z\d]*$`),
	rule("mg/l", `^mgr?[\.\,]?[/7\s]?l\s?[a-zA-Z\d]*$`),
	rule("ng/l", `^([a-zA-Z\d]+(,[a-zA-Z\d]+)*)?[\s]?\(?(n|nano)gr?.*[/7\s]l\s?[a-zA-Z\d]*$`),
	rule("ng/dl", `^([a-zA-Z\d]+(,[a-zA-Z\d]+)*)?[\s]?\(?(n|nano)gr?.*[/7\s](dl\s?[a-zA-Z\d]*|100\s?ml)\s?[a-zA-Z\d]*$`),
	rule("ng/ml", `^([a-zA-Z\d]+(,[a-zA-Z\d]+)*)?[\s]?\(?(n|nano)gr?.*[/7\s]?ml\s?[a-zA-Z\dóò]*$`),
	rule("pg/ml", `^([a-zA-Z\d]+(,[a-zA-Z\d]+)*)?[\s]?\(?(p|pico)gr?.*[/7\s]?ml\s?[a-zA-Z\d]*$`),
	rule("mpl/ml", `^([a-zA-Z\d]+(,[a-zA-Z\d]+)*)?[\s]?\(?mpl.*[/7\s]?ml\s?[a-zA-Z\d]*$`),
	rule("g/dl", `^([\d]+(,[\d]+)*)?[\s]?gr?[/7\s]?(dl|100\s?ml)$`),
	rule("g/ml", `^([\d]+(,[\d]+)*)?[\s]?gr?[/7\s]?ml$`),
	rule("g/l", `^([\d]+(,[\d]+)*)?[\s]?gr?[/7\s]?l$`),
	ruleExcept("mmol/l", `^m{1,2}(os)?m(ol?)?[/7].*l.*`, `/mm?o|dl`),
	rule("pmol/l", `^pm(ol?)?\.?[/7].*l.*`),
	ruleExcept("mmol/dl", `^m(os)?m(ol?)?[/7].*dl.*`, `/mm?o`),
	rule("ui/ml", `^([\d]+(,[\d]+)*)?(u(i|\.?int\.?)|iu)[/7]m\,?l.*$`),
	rule("ua/ml", `^([\d]+(,[\d]+)*)?(u(a|\.?int\.?)|au)[/7]ml.*$`),
	rule("ui/l", `^([\d]+(,[\d]+)*)?\s?(ui?|\.?int\.?u|u\.?int\.?|iu)[/7]l.*$`),
	rule("mui/l", `^m(ui?|\.?int\.?u\.?|\.?u\.?int\.?|iu)[/7]l.*$`),
	rule("ui/dl", `^([\d]+(,[\d]+)*)?\s?(ui?|\.?int\.?u\.?|u\.?int\.?|iu)[/7]dl.*$`),
	rule("kiu/l", `^k(int\.?u\.?|iu|u(?:\.?i\.?)?)?[7/]l{1,2}`),
	rule("µui/ml", `^\(?[áâæ]?(mc?|micro\s?|u|µ|[áâæ])(ui?|iu)[/7\s]?ml$`),
	rule("eu/dl", `^([a-zA-Z\d]+(,[a-zA-Z\d]+)*)?[\s]?\(?e.?u.?[/7\s]?dl$`),
	rule("µmol/l", `^[âá]?([âáuµ]|micro|mu)mol/l$`),
	rule("nmol/mmol", `^nmol/*mmol\s?.*`),
	rule("mmol/mol", `^m?mmol/*mol\s?.*`),
	rule("mg/mmol", `^mg/mmol\s?(cre)?.*`),
	rule("mol/mol", `^mol/mol.*`),
	rule("g/mol", `^g/mol\s?(cre)?.*`),
	rule("10^3/µl", `^x?.*(10.*[3³]|mil|1000|^m|^k[/7]).*/*[áâ]*([µuá]l|mcl)$`),
	rule("10^3/mm3", `^x?.*(10.*[3³]|mil|1000|^m[/7]|^k[/7]).*/*mm[\s]?.*$`),
	rule("10^3/ml", `^x?.*(10.*[3³]|mil|1000|^m[/7]|^k[/7]).*/*(ml|microl)[\s]?.*$`),
	rule("10^3", `^x?.*(10[^xe]?[3³]|mil|1000)$`),
	rule("10^6/µl", `^x?.*10.*6.*/*[áâ]*([µuá]l|mcl)$`),
	rule("10^6/ml", `^x?.*10.*6.*/*ml$`),
	rule("10^6/l", `^x?.*10.*6.*/?l$`),
	rule("10^6/mm3", `^x?.*10.*6.*/*mm[\s]?.*$`),
	rule("10^6", `^x?.*10.*6$`),
	rule("10^9/l", `^x?.*10?.*9.*/?l$`),
	rule("10^9", `^x?.*10.*9$`),
	rule("10^12/l", `^x?.*10.*12.*/?l$`),
	rule("index", `(^|[^\pL\pN_])ã?[iíïã][mn]dex($|[^\pL\pN_])|indice`),
	rule("segons", `\b(s(?:eg(?:ond|ons?|undos?)?|g(?:u)?)|^s$)\b`),
	rule("ratio", `^\[?(r(a[oöóò]|[aàá]tio?)|(in)?r)$`),
	rule("ph", `^.*?ph.*$`),
	rule("mmol/24h", `mmol/\s?(24\s?h(or[ae]s)?|d(ia)?).*`),
	rule("µg/24h", `[â]?(u|mc|µ|mu)g/\s?(24\s?h(or[ae]s)?|d(ia)?).*`),
	rule("mg/24h", `mgr?/\s?(24\s?h(or[ae]s)?.*|d(ia)?)`),
	rule("ui/24h", `(u\.?i|i\.?u)/\s?(24\s?h(or[ae]s)?.*|d(ia)?)`),
	rule("g/24h", `gr?/\s?(24\s?h(or[ae]s)?.*|d(ia)?)`),
	rule("g/12h", `gr?/\s?12\s?h(or[ae]s)?.*`),
	rule("nmol/24h", `nmol/\s?(24\s?h(or[ae]s)?.*|d(ia)?)`),
	rule("meq/24h", `([\d]+(,[\d]+)*)?mequ?[/7](24\s?h(or[ae]s)?.*|d(ia)?)`),
	rule("ml/min/1.73m2", `\b(ml|mil?)(?:[i]*|il)?[7/\(]*m(?:i?n?)?[\)*]?/?1[.,']7[23]m?(?:\^?2|[m²&2e2]*)?.*\b`),
	rule("ml/min", `^ml[/7]m(i|in|n|inut)`),
	rule("ng/ml/h", `^ng[/7]ml[7/]h(ora)?$`),
	rule("cel/mm3", `^1?(x\s?)?[/7]mm[\s]?(c|3|c[uú]bic|³)`),
	rule("cel/µl", `^1?u?[/7]â?(mc|micro|u|µ)[\s]?l`),
	rule("cel/mm3", `^.*(hem:*|c[eièé]l).*[/7]mm.*`),
	rule("cel/µl", `^.*(hem:*|c[eièé]l).*[/7]â?(mc|micro|u|µ)[\s]?l`),
	rule("cel/µl", `^.*er[iy][/7][áâ]?(mc|micro|u|µ)[\s]?l`),
	rule("cel/µl", `^.*leu.*[/7][áâ]?(mc|micro|u|µ)[\s]?l`),
	rule("cel/camp", `^(per\s?camp|x?\s?camp|(cel)?/\s?camp)$`),
	rule("copies/ml", `^.*c..?pies.*[/7](ml)[\s]?.*`),
	rule("g", `^gr?$`),
	rule("µl", `^[â]?(micro|mc|[æáµu]|um|mu)l$`),
	rule("mm3", `^mm[\s]?(c|3|c[uú]bic|³)$`),
	rule("pg", `^pgr?$`),
	rule("g/dl", `^gr?/100\s?ml$`),
	ruleExcept("µg/g", `^[áâ]?(mc|micro|u|µ)g.*[/7]gr?`, `µg/ghb`),
	rule("g/g", `^g.*[/7]gr?.*`),
	rule("mg/g", `^u?mg.*[/7]gr?.*`),
	rule("mg/mg", `^u?mg.*[/7]mg?.*`),
	rule("mg/kg", `^u?mg.*[/7]kg.*`),
	ruleExcept("µg/mg", `^â?(mc|micro|u|µ|mu)g.*[/7].*mgr?.*`, `µg/ghb|^umg/mg`),
	rule("mmol/kg", `^m(os)?m(ol)?[/7].*kgr?.*`),
	rule("gpl/ml", `^(u\s?)?gpl.*[/7]ml`),
	rule("µkat/l", `^[uµ]kat[/7]l`),
	rule("mu/10^9 eritrocits", `^mu[/7]\s?(10?.*9.*|mil.*|1000\s?mil.*)`),
	rule("meq/l", `^([\d]+(,[\d]+)*)?mequ?[/7]\s?l`),
	rule("mmhg", `^mm\s?hg`),
	rule("fl", `^fl(\.)?`),
}
