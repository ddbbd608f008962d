package ingest

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

var (
	codeTokens  = map[string]struct{}{"cod": {}, "codigo": {}, "id": {}, "identificador": {}, "numero": {}, "no": {}, "nro": {}, "code": {}}
	groupTokens = map[string]struct{}{"programa": {}, "grupo": {}, "ficha": {}, "program": {}, "group": {}, "cohort": {}}
)

// Resolution maps source columns to canonical fields.
type Resolution struct {
	Headers []string
	// Columns maps a column index to its canonical field.
	Columns  map[int]string
	Unmapped []string
	index    map[string]int
}

func (r Resolution) Index(field string) (int, bool) {
	i, ok := r.index[field]
	return i, ok
}

func (r Resolution) Has(field string) bool {
	_, ok := r.index[field]
	return ok
}

// Mapping returns raw header -> canonical field for every resolved column.
func (r Resolution) Mapping() map[string]string {
	out := make(map[string]string, len(r.Columns))
	for i, field := range r.Columns {
		out[r.Headers[i]] = field
	}
	return out
}

type alias struct {
	text   string
	tokens []string
}

type header struct {
	text   string
	tokens []string
}

// Resolver matches raw headers against an alias table. It is immutable
// after construction and safe for concurrent use.
type Resolver struct {
	family  Family
	order   []string
	aliases map[string][]alias
}

func NewResolver(aliases Aliases, family Family) *Resolver {
	r := &Resolver{
		family:  family,
		order:   family.Names(),
		aliases: make(map[string][]alias, len(family.Fields)),
	}
	for _, name := range r.order {
		forms := []alias{{text: normalizeHeader(name), tokens: headerTokens(name)}}
		for _, spelling := range aliases[name] {
			tokens := headerTokens(spelling)
			if len(tokens) == 0 {
				continue
			}
			forms = append(forms, alias{text: strings.Join(tokens, " "), tokens: tokens})
		}
		r.aliases[name] = forms
	}
	return r
}

func (r *Resolver) Family() Family { return r.family }

// Resolve maps headers to canonical fields: exact alias matches first, then
// token containment, then the fixed positional layout, and finally a
// keyword scan for required fields. Leftmost columns win ties and each
// canonical field is used at most once.
func (r *Resolver) Resolve(headers []string) (Resolution, error) {
	res := Resolution{
		Headers: headers,
		Columns: make(map[int]string),
		index:   make(map[string]int),
	}
	norm := make([]header, len(headers))
	for i, h := range headers {
		tokens := headerTokens(h)
		norm[i] = header{text: strings.Join(tokens, " "), tokens: tokens}
	}

	assign := func(col int, field string) {
		res.Columns[col] = field
		res.index[field] = col
	}
	free := func(col int) bool {
		_, taken := res.Columns[col]
		return !taken && norm[col].text != ""
	}

	for i, h := range norm {
		if !free(i) {
			continue
		}
		if field, ok := r.match(h, res.index, exactMatch); ok {
			assign(i, field)
		}
	}
	for i, h := range norm {
		if !free(i) {
			continue
		}
		if field, ok := r.match(h, res.index, containsMatch); ok {
			assign(i, field)
		}
	}

	if layout := r.family.Layout; len(layout) > 0 && len(headers) == len(layout) && len(res.Columns)*2 < len(layout) {
		for i, field := range layout {
			if _, taken := res.Columns[i]; taken {
				continue
			}
			if _, used := res.index[field]; used {
				continue
			}
			assign(i, field)
		}
	}

	for _, field := range r.family.Fields {
		if !field.Required {
			continue
		}
		if _, ok := res.index[field.Name]; ok {
			continue
		}
		if field.Name == FieldFicha {
			if col, ok := r.keywordScan(norm, res.Columns, field.Name); ok {
				assign(col, field.Name)
				continue
			}
		}
		return res, &UnresolvedRequiredFieldError{
			Field:       field.Name,
			Headers:     append([]string(nil), headers...),
			Suggestions: r.suggest(field.Name, headers),
		}
	}

	for _, name := range r.order {
		if _, ok := res.index[name]; !ok {
			res.Unmapped = append(res.Unmapped, name)
		}
	}
	return res, nil
}

type matchFunc func(h header, a alias) bool

func exactMatch(h header, a alias) bool { return h.text == a.text }

// containsMatch accepts a contiguous token run of one side inside the
// other. Single-word aliases and headers only ever match exactly, so a
// header like "tipo formacion" is not taken for the "formacion" counter.
func containsMatch(h header, a alias) bool {
	if len(a.tokens) > 1 && containsRun(h.tokens, a.tokens) {
		return true
	}
	return len(h.tokens) > 1 && containsRun(a.tokens, h.tokens)
}

func containsRun(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, tok := range needle {
			if haystack[i+j] != tok {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (r *Resolver) match(h header, used map[string]int, fn matchFunc) (string, bool) {
	for _, field := range r.order {
		if _, taken := used[field]; taken {
			continue
		}
		for _, a := range r.aliases[field] {
			if fn(h, a) {
				return field, true
			}
		}
	}
	return "", false
}

func (r *Resolver) keywordScan(norm []header, taken map[int]string, field string) (int, bool) {
	key := normalizeHeader(field)
	hasToken := func(h header, want string) bool {
		for _, tok := range h.tokens {
			if tok == want {
				return true
			}
		}
		return false
	}
	// Headers naming the field directly win, plain ones before "identificador ..." ones.
	for _, plain := range []bool{true, false} {
		for i, h := range norm {
			if _, ok := taken[i]; ok {
				continue
			}
			if plain && hasToken(h, "identificador") {
				continue
			}
			if hasToken(h, key) {
				return i, true
			}
		}
	}
	for i, h := range norm {
		if _, ok := taken[i]; ok {
			continue
		}
		var hasCode, hasGroup bool
		for _, tok := range h.tokens {
			if _, ok := codeTokens[tok]; ok {
				hasCode = true
			}
			if _, ok := groupTokens[tok]; ok {
				hasGroup = true
			}
		}
		if hasCode && hasGroup {
			return i, true
		}
	}
	return 0, false
}

// suggest ranks headers by edit distance to the field's spellings.
func (r *Resolver) suggest(field string, headers []string) []string {
	type scored struct {
		header string
		dist   int
	}
	var hits []scored
	for _, h := range headers {
		n := normalizeHeader(h)
		if n == "" {
			continue
		}
		best := -1
		for _, a := range r.aliases[field] {
			d := fuzzy.LevenshteinDistance(n, a.text)
			if best < 0 || d < best {
				best = d
			}
		}
		if best >= 0 && best <= 3 {
			hits = append(hits, scored{header: h, dist: best})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	out := make([]string, 0, len(hits))
	for _, s := range hits {
		out = append(out, s.header)
	}
	return out
}

// DetectHeader picks the header row among the first maxScan rows: the first
// row resolving every required field, else the row matching the most fields.
func (r *Resolver) DetectHeader(rows [][]string, maxScan int) int {
	if maxScan <= 0 || maxScan > len(rows) {
		maxScan = len(rows)
	}
	best, bestScore := 0, -1
	for i := 0; i < maxScan; i++ {
		res, err := r.Resolve(rows[i])
		if err == nil && len(res.Columns) > 0 {
			return i
		}
		if score := len(res.Columns); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
