package aggregate

import (
	"time"

	"golang.org/x/text/language"
)

// DateKeyer formats a calendar date the way a locale prints short dates.
// The formatted string is both the display label and the grouping key.
type DateKeyer struct {
	locale language.Tag
	layout string
}

// supportedLocales lists the locales with a known short-date layout. The
// first entry is the fallback for unmatched tags.
var supportedLocales = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.Dutch,
	language.Japanese,
	language.Chinese,
	language.Korean,
	language.Swedish,
}

var localeLayouts = []string{
	"1/2/2006",
	"02/01/2006",
	"2.1.2006",
	"02/01/2006",
	"2/1/2006",
	"2-1-2006",
	"2006/1/2",
	"2006/1/2",
	"2006. 1. 2.",
	"2006-01-02",
}

var localeMatcher = language.NewMatcher(supportedLocales)

// DefaultKeyer formats en-US dates such as "6/1/2024".
var DefaultKeyer = DateKeyer{locale: language.AmericanEnglish, layout: localeLayouts[0]}

// NewDateKeyer picks the closest supported layout for a BCP-47 locale such as
// "en-GB" or "de". Unknown or empty locales fall back to en-US.
func NewDateKeyer(locale string) DateKeyer {
	if locale == "" {
		return DefaultKeyer
	}
	_, index := language.MatchStrings(localeMatcher, locale)
	if index < 0 || index >= len(localeLayouts) {
		return DefaultKeyer
	}
	return DateKeyer{locale: supportedLocales[index], layout: localeLayouts[index]}
}

// Key formats t's calendar date in t's own location.
func (k DateKeyer) Key(t time.Time) string {
	if k.layout == "" {
		k = DefaultKeyer
	}
	return t.Format(k.layout)
}

// Locale reports the matched locale tag.
func (k DateKeyer) Locale() string {
	if k.layout == "" {
		return DefaultKeyer.locale.String()
	}
	return k.locale.String()
}

// SameDay reports whether a and b share a grouping key once converted to loc.
func (k DateKeyer) SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	return k.Key(a.In(loc)) == k.Key(b.In(loc))
}
