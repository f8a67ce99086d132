package matcher

import (
	"strings"
)

// ExtractKeywords returns the vocabulary terms present in description, in
// vocabulary order, followed by other fashion-looking words. At most max
// keywords are returned; max <= 0 means no cap.
func (v *Vocabulary) ExtractKeywords(description string, max int) []string {
	idx := newTextIndex(description)
	if idx.empty() {
		return nil
	}

	var out []string
	found := make(map[string]struct{})
	add := func(kw, folded string) bool {
		if _, dup := found[folded]; dup {
			return true
		}
		found[folded] = struct{}{}
		out = append(out, kw)
		return max <= 0 || len(out) < max
	}

	for _, p := range v.keywords {
		if idx.has(p) {
			if !add(p.text, strings.Join(p.folded, " ")) {
				return out
			}
		}
	}
	for i, w := range idx.words {
		if len(w) <= 3 || !v.indicative(w) {
			continue
		}
		if !add(w, idx.folded[i]) {
			return out
		}
	}
	return out
}

func (v *Vocabulary) indicative(word string) bool {
	for _, s := range v.Indicators {
		if strings.Contains(word, s) {
			return true
		}
	}
	return false
}

// DetectCategory votes description words against the category mapping.
// The category with the most hits wins and ties go to the earlier
// category. Without any hit the result is "clothing" when a generic
// apparel word is present and "general" otherwise.
func (v *Vocabulary) DetectCategory(description string) string {
	idx := newTextIndex(description)
	best, bestHits := "", 0
	for i, terms := range v.categories {
		hits := 0
		for _, p := range terms {
			if idx.has(p) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = v.Categories[i].Name, hits
		}
	}
	if bestHits > 0 {
		return best
	}
	for _, p := range v.generic {
		if idx.has(p) {
			return "clothing"
		}
	}
	return "general"
}

// keywordSignal is the share of keywords found in the item text.
func keywordSignal(keywords []phrase, item textIndex) float64 {
	if len(keywords) == 0 || item.empty() {
		return 0
	}
	matched := 0
	for _, kw := range keywords {
		if item.has(kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

// categorySignal is 1 when the item category itself is named in the
// description, 0.8 when it is named through a synonym group and 0 otherwise.
func (v *Vocabulary) categorySignal(desc textIndex, category string) float64 {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" || desc.empty() {
		return 0
	}
	cat := newPhrase(category)
	if desc.has(cat) {
		return 1
	}
	for i, group := range v.synonyms {
		key := newPhrase(v.Synonyms[i].Name)
		if sameTerm(cat, key) {
			for _, syn := range group {
				if desc.has(syn) {
					return 0.8
				}
			}
			continue
		}
		for _, syn := range group {
			if sameTerm(cat, syn) && desc.has(key) {
				return 0.8
			}
		}
	}
	return 0
}

func sameTerm(a, b phrase) bool {
	return strings.Join(a.folded, " ") == strings.Join(b.folded, " ")
}

// visualTextSignal counts colour, pattern and style terms present in both
// texts, normalized by the combined vocabulary size.
func (v *Vocabulary) visualTextSignal(desc, item textIndex) float64 {
	total := v.VisualSize()
	if total == 0 || desc.empty() || item.empty() {
		return 0
	}
	shared := 0
	for _, list := range [][]phrase{v.colors, v.patterns, v.styles} {
		for _, p := range list {
			if desc.has(p) && item.has(p) {
				shared++
			}
		}
	}
	return float64(shared) / float64(total)
}
