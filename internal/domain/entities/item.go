package entities

// ItemType distinguishes the two kinds of studied items.
type ItemType string

const (
	ItemVocab ItemType = "vocab"
	ItemKanji ItemType = "kanji"
)

// IsValid reports whether t is a known item type.
func (t ItemType) IsValid() bool {
	return t == ItemVocab || t == ItemKanji
}

// Language is a meaning translation language.
type Language string

const (
	LangVietnamese Language = "vi"
	LangEnglish    Language = "en"
)

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool {
	return l == LangVietnamese || l == LangEnglish
}

// Vocabulary is a dictionary word record. Populated by the import pipeline;
// the core only reads it.
type Vocabulary struct {
	ID        int64
	Word      string // written form, usually containing kanji
	Reading   string // kana reading
	JLPTLevel int    // 5 (easiest) .. 1
	Meanings  map[Language][]string
}

// Kanji is a single-character dictionary record.
type Kanji struct {
	ID          int64
	Character   string
	Onyomi      []string
	Kunyomi     []string
	Radical     string
	StrokeCount int
	JLPTLevel   int
	Meanings    map[Language][]string
}

// Meaning returns the first meaning in the given language, or "".
func firstMeaning(meanings map[Language][]string, lang Language) string {
	if ms := meanings[lang]; len(ms) > 0 {
		return ms[0]
	}
	return ""
}

// FirstMeaning returns the vocabulary's first meaning in lang, or "".
func (v *Vocabulary) FirstMeaning(lang Language) string {
	return firstMeaning(v.Meanings, lang)
}

// FirstMeaning returns the kanji's first meaning in lang, or "".
func (k *Kanji) FirstMeaning(lang Language) string {
	return firstMeaning(k.Meanings, lang)
}
