package catalog

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Messages resolves user message keys to localised text. English is the
// fallback language.
type Messages struct {
	builder *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
	keys    map[language.Tag]map[string]bool
}

// NewMessages builds a bundle from language -> key -> text.
func NewMessages(bundle map[string]map[string]string) (*Messages, error) {
	m := &Messages{
		builder: catalog.NewBuilder(catalog.Fallback(language.English)),
		keys:    make(map[language.Tag]map[string]bool),
	}

	langs := make([]string, 0, len(bundle))
	for lang := range bundle {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	m.tags = append(m.tags, language.English)
	for _, lang := range langs {
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("messages: invalid language %q: %w", lang, err)
		}
		if tag != language.English {
			m.tags = append(m.tags, tag)
		}
		if m.keys[tag] == nil {
			m.keys[tag] = make(map[string]bool)
		}
		for key, text := range bundle[lang] {
			if err := m.builder.SetString(tag, key, text); err != nil {
				return nil, fmt.Errorf("messages: %s/%s: %w", lang, key, err)
			}
			m.keys[tag][key] = true
		}
	}
	m.matcher = language.NewMatcher(m.tags)

	return m, nil
}

// Resolve returns the text for key in the best language for acceptLanguage,
// falling back to English. ok is false when no language defines key.
func (m *Messages) Resolve(key, acceptLanguage string) (string, bool) {
	if m == nil || key == "" {
		return "", false
	}

	tag := m.match(acceptLanguage)
	if !m.keys[tag][key] {
		tag = language.English
		if !m.keys[tag][key] {
			return "", false
		}
	}

	return message.NewPrinter(tag, message.Catalog(m.builder)).Sprintf(key), true
}

// Has reports whether any language defines key.
func (m *Messages) Has(key string) bool {
	if m == nil {
		return false
	}
	for _, keys := range m.keys {
		if keys[key] {
			return true
		}
	}
	return false
}

func (m *Messages) match(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return language.English
	}
	want, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(want) == 0 {
		return language.English
	}
	_, idx, conf := m.matcher.Match(want...)
	if conf == language.No {
		return language.English
	}
	return m.tags[idx]
}
