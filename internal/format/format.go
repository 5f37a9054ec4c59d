// Package format renders dates and amounts as localized display text. It is
// a pure string producer: no UI concern, no state, safe to share.
package format

import (
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"kopilka/internal/core"
)

var supported = []language.Tag{
	language.English, // fallback
	language.Russian,
}

var matcher = language.NewMatcher(supported)

// labelSet holds the per-language fixed labels and the short date layout.
type labelSet struct {
	today      string
	yesterday  string
	unknown    string
	dateLayout string
}

var labelSets = map[language.Tag]labelSet{
	language.English: {today: "Today", yesterday: "Yesterday", unknown: "Unknown", dateLayout: "Jan 2, 2006"},
	language.Russian: {today: "Сегодня", yesterday: "Вчера", unknown: "Без даты", dateLayout: "02.01.2006"},
}

// Formatter produces day labels for feed groups and localized currency text.
// It implements core.DayLabeler.
type Formatter struct {
	labels  labelSet
	printer *message.Printer
	unit    currency.Unit
}

// New builds a formatter for a BCP 47 locale ("en", "ru") and an ISO 4217
// currency code. Unknown locales fall back to English, unknown currency codes
// to USD.
func New(locale, currencyCode string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	_, idx, _ := matcher.Match(tag)
	resolved := supported[idx]

	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		unit = currency.USD
	}

	return &Formatter{
		labels:  labelSets[resolved],
		printer: message.NewPrinter(resolved),
		unit:    unit,
	}
}

// DayLabel renders the display label for a calendar day: Today, Yesterday, a
// short localized date, or the unknown-date label for the zero value.
func (f *Formatter) DayLabel(d core.Date, now time.Time) string {
	switch {
	case d.IsZero():
		return f.labels.unknown
	case d.SameDay(core.DateOf(now)):
		return f.labels.today
	case d.SameDay(core.DateOf(now.AddDate(0, 0, -1))):
		return f.labels.yesterday
	default:
		return d.Format(f.labels.dateLayout)
	}
}

// Amount renders a money value as localized currency text, e.g. "$ 12.34".
func (f *Formatter) Amount(m core.Money) string {
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(m.Units())))
}

var _ core.DayLabeler = (*Formatter)(nil)
