package matcher

import (
	"strings"

	"shoprag/internal/adapter/analyzer"
)

// phrase is a vocabulary term pre-split into words, raw and plural-folded.
type phrase struct {
	text   string
	words  []string
	folded []string
}

func newPhrase(text string) phrase {
	words := analyzer.Words(text)
	return phrase{text: text, words: words, folded: foldAll(words)}
}

func phrases(terms []string) []phrase {
	out := make([]phrase, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, newPhrase(key))
	}
	return out
}

func foldAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = analyzer.FoldPlural(w)
	}
	return out
}

// textIndex is a piece of text split for whole-word phrase lookups.
type textIndex struct {
	words  []string
	folded []string
}

func newTextIndex(text string) textIndex {
	words := analyzer.Words(text)
	return textIndex{words: words, folded: foldAll(words)}
}

func (t textIndex) empty() bool {
	return len(t.words) == 0
}

// has reports whether p occurs as whole words, comparing either the raw
// words or their singular forms.
func (t textIndex) has(p phrase) bool {
	return analyzer.ContainsPhrase(t.words, p.words) || analyzer.ContainsPhrase(t.folded, p.folded)
}

// CategoryTerms maps a coarse category to the words that indicate it.
type CategoryTerms struct {
	Name  string
	Terms []string
}

// Vocabulary holds the fixed term lists the matcher works from. Slices are
// ordered; order decides keyword output order and category tie breaks.
type Vocabulary struct {
	Keywords   []string
	Indicators []string // substrings marking a word as fashion related
	Colors     []string
	Patterns   []string
	Styles     []string
	Categories []CategoryTerms
	Synonyms   []CategoryTerms
	Generic    []string // generic apparel words

	keywords   []phrase
	colors     []phrase
	patterns   []phrase
	styles     []phrase
	categories [][]phrase
	synonyms   [][]phrase
	generic    []phrase
}

// DefaultVocabulary returns the fashion vocabulary.
func DefaultVocabulary() *Vocabulary {
	v := &Vocabulary{
		Keywords: []string{
			// clothing types
			"shirt", "dress", "pants", "jeans", "jacket", "coat", "sweater", "hoodie",
			"skirt", "shorts", "top", "blouse", "cardigan", "blazer", "vest", "tshirt", "t-shirt",
			"polo", "tank", "crop", "maxi", "mini", "midi", "formal", "casual",
			"uniform", "suit", "trouser", "leggings", "jogger", "sweatshirt",
			// colours
			"red", "blue", "green", "yellow", "black", "white", "gray", "grey", "brown",
			"pink", "purple", "orange", "navy", "beige", "khaki", "denim", "cream",
			"maroon", "burgundy", "teal", "turquoise", "lime", "olive", "gold", "silver",
			// materials
			"cotton", "wool", "silk", "linen", "polyester", "leather", "velvet",
			"satin", "chiffon", "jersey", "canvas", "corduroy", "fleece",
			// patterns
			"striped", "floral", "solid", "plaid", "checkered", "polka", "geometric",
			"printed", "embroidered", "lace", "paisley", "animal", "abstract",
			// features
			"long", "short", "sleeve", "sleeveless", "collar", "button", "zip", "zipper",
			"pocket", "hood", "belt", "tie", "bow", "ruffle", "pleated", "fitted",
			"loose", "tight", "slim", "regular", "oversized",
			// audience and occasion
			"men", "women", "unisex", "boy", "girl", "adult", "kids", "child",
			"sport", "athletic", "business", "party", "wedding",
			// accessories
			"hat", "cap", "scarf", "gloves", "bag", "shoes", "sneakers",
			"boots", "sandals", "heels", "flats", "watch", "jewelry", "necklace",
			// styles
			"vintage", "modern", "classic", "trendy", "bohemian", "punk", "gothic",
			"preppy", "streetwear", "minimalist", "elegant", "chic",
		},
		Indicators: []string{"wear", "cloth", "dress", "style"},
		Colors: []string{
			"red", "blue", "green", "yellow", "black", "white", "gray", "brown",
			"pink", "purple", "orange", "navy", "beige", "khaki",
		},
		Patterns: []string{"striped", "floral", "solid", "plaid", "checkered", "polka", "printed"},
		Styles:   []string{"casual", "formal", "vintage", "modern", "elegant", "sporty"},
		Categories: []CategoryTerms{
			{Name: "shirt", Terms: []string{"shirt", "top", "blouse", "t-shirt", "polo", "tank", "vest"}},
			{Name: "bag", Terms: []string{"bag", "purse", "handbag", "backpack", "tote", "clutch"}},
			{Name: "watch", Terms: []string{"watch", "timepiece", "smartwatch"}},
			{Name: "shoes", Terms: []string{"shoes", "sneakers", "boots", "sandals", "heels"}},
			{Name: "jeans", Terms: []string{"jeans", "pants", "trouser", "denim"}},
			{Name: "dress", Terms: []string{"dress", "gown", "frock"}},
			{Name: "jacket", Terms: []string{"jacket", "coat", "blazer", "hoodie"}},
			{Name: "accessories", Terms: []string{"accessories", "jewelry", "necklace", "bracelet"}},
		},
		Synonyms: []CategoryTerms{
			{Name: "shirt", Terms: []string{"top", "blouse", "tshirt", "t-shirt", "polo", "dress shirt"}},
			{Name: "dress", Terms: []string{"gown", "frock", "maxi", "mini", "midi"}},
			{Name: "pants", Terms: []string{"trousers", "jeans", "leggings", "slacks"}},
			{Name: "jacket", Terms: []string{"coat", "blazer", "cardigan", "hoodie"}},
			{Name: "shoes", Terms: []string{"footwear", "sneakers", "boots", "sandals", "heels"}},
			{Name: "bag", Terms: []string{"purse", "handbag", "backpack", "tote"}},
			{Name: "hat", Terms: []string{"cap", "beanie", "fedora"}},
		},
		Generic: []string{"clothing", "wear", "garment", "outfit"},
	}
	v.compile()
	return v
}

// compile pre-splits every term list. Call it after changing the exported lists.
func (v *Vocabulary) compile() {
	v.keywords = phrases(v.Keywords)
	v.colors = phrases(v.Colors)
	v.patterns = phrases(v.Patterns)
	v.styles = phrases(v.Styles)
	v.generic = phrases(v.Generic)

	v.categories = make([][]phrase, len(v.Categories))
	for i, c := range v.Categories {
		v.categories[i] = phrases(c.Terms)
	}
	v.synonyms = make([][]phrase, len(v.Synonyms))
	for i, s := range v.Synonyms {
		v.synonyms[i] = phrases(s.Terms)
	}
}

// VisualSize is the combined size of the colour, pattern and style lists.
func (v *Vocabulary) VisualSize() int {
	return len(v.colors) + len(v.patterns) + len(v.styles)
}
