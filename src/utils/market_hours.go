package utils

import (
	"strings"
	"sync"
	"time"

	"github.com/scmhub/calendar"
)

// Exchange suffixes (Yahoo style) mapped to ISO 10383 MIC codes understood by
// scmhub/calendar. Anything else trades on NYSE hours.
var suffixMIC = map[string]string{
	".L":  "xlon",
	".PA": "xpar",
	".DE": "xfra",
	".AS": "xams",
	".MI": "xmil",
	".MC": "xmad",
	".SW": "xswx",
	".TO": "xtse",
	".T":  "xtks",
	".HK": "xhkg",
	".AX": "xasx",
}

const defaultMIC = "xnys"

// -----------------------------------------------------------------------------

// MarketHours answers "is this market open" for a symbol's exchange. When no
// calendar can be loaded it falls back to Mon-Fri 09:30-16:00 New York time.
type MarketHours struct {
	MIC      string
	calendar *calendar.Calendar
	loc      *time.Location
}

func micFor(symbol string) string {
	if i := strings.LastIndex(symbol, "."); i > 0 {
		if mic, ok := suffixMIC[symbol[i:]]; ok {
			return mic
		}
	}
	return defaultMIC
}

var (
	hoursMu    sync.Mutex
	hoursCache = map[string]*MarketHours{}
)

// MarketHoursFor returns the (cached) hours of the exchange symbol trades on.
func MarketHoursFor(symbol string) *MarketHours {
	mic := micFor(symbol)

	hoursMu.Lock()
	defer hoursMu.Unlock()
	if h, ok := hoursCache[mic]; ok {
		return h
	}

	h := &MarketHours{MIC: mic}
	if cal := calendar.GetCalendar(mic); cal != nil {
		h.calendar = cal
		h.loc = cal.Loc
	} else {
		h.loc, _ = time.LoadLocation("America/New_York")
		if h.loc == nil {
			h.loc = time.UTC
		}
	}
	hoursCache[mic] = h
	return h
}

// -----------------------------------------------------------------------------

func (h *MarketHours) IsOpen(t time.Time) bool {
	t = t.In(h.loc)
	if h.calendar != nil {
		return h.calendar.IsOpen(t)
	}

	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}

// -----------------------------------------------------------------------------

// AnyMarketOpen reports whether at least one symbol's market is open at t.
func AnyMarketOpen(symbols []string, t time.Time) bool {
	for _, s := range symbols {
		if MarketHoursFor(s).IsOpen(t) {
			return true
		}
	}
	return false
}
