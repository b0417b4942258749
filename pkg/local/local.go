package local

import (
	"fmt"
	"strings"
)

// Language is the primary subtag of a user's language.
type Language string

const (
	Eng = Language("en")
	Rus = Language("ru")
)

// ParseLanguage maps an IETF language tag such as "ru-RU" to a known language.
func ParseLanguage(code string) Language {
	code = strings.ToLower(code)
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	switch Language(code) {
	case Rus:
		return Rus
	default:
		return Eng
	}
}

// Localization is one translated variant of a TextSet.
type Localization struct {
	language Language
	text     string
}

// TextSet is a user-facing text with its translations. Texts may hold
// fmt verbs filled in by Format.
type TextSet struct {
	Default          string
	translationsText map[Language]string
}

func NewTrans(language Language, text string) Localization {
	return Localization{
		language: language,
		text:     text,
	}
}

// NewSet builds a TextSet whose defaultText is used for any language
// without a translation.
func NewSet(defaultText string, localizations ...Localization) TextSet {
	set := TextSet{
		Default:          defaultText,
		translationsText: make(map[Language]string),
	}
	for _, localization := range localizations {
		set.translationsText[localization.language] = localization.text
	}
	return set
}

func (l TextSet) Text(language Language) string {
	if text, ok := l.translationsText[language]; ok {
		return text
	}
	return l.Default
}

// Format fills the verbs of the text for language with a.
func (l TextSet) Format(language Language, a ...any) string {
	return fmt.Sprintf(l.Text(language), a...)
}
