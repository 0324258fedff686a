// Package killzone classifies timestamps into ICT trading session windows.
//
// All windows are keyed to UTC. London Open and NY Open are the
// highest-probability entry windows; the Asian session and NY Close carry
// low expected volatility and are not optimal for entries.
package killzone

import (
	"fmt"
	"strings"
	"time"
)

// Zone names a trading session window.
type Zone string

const (
	ZoneLondonOpen  Zone = "london_open"
	ZoneNYOpen      Zone = "ny_open"
	ZoneLondonClose Zone = "london_close"
	ZoneAsian       Zone = "asian_session"
	ZoneNYClose     Zone = "ny_close"
	ZoneOffHours    Zone = "off_hours"
)

// Title returns a display name, e.g. "London Open".
func (z Zone) Title() string {
	parts := strings.Split(string(z), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// Info describes the session status for a timestamp.
type Info struct {
	Zone               Zone
	IsActive           bool
	Multiplier         float64 // signal strength multiplier, 1.0 off-hours
	OptimalForEntries  bool
	VolatilityExpected string // low, medium, high
	TimeRemaining      int    // minutes left in the active window, 0 when inactive
	TimeUntilNext      int    // minutes until the next window, 0 when active
	Description        string
}

type window struct {
	zone        Zone
	start, end  float64 // decimal hours UTC, start <= t < end
	multiplier  float64
	optimal     bool
	volatility  string
	description string
}

// Checked in order: the London Open window takes precedence over the tail
// of the Asian session.
var windows = []window{
	{ZoneLondonOpen, 7, 10, 1.30, true, "high", "London Open Kill Zone - Highest probability setups"},
	{ZoneNYOpen, 12, 15, 1.25, true, "high", "New York Open Kill Zone - Second highest probability"},
	{ZoneLondonClose, 15, 17, 1.15, true, "medium", "London Close Kill Zone - Moderate probability"},
	{ZoneAsian, 0, 8, 1.10, false, "low", "Asian Session - Moderate activity"},
	{ZoneNYClose, 19, 21, 1.05, false, "low", "New York Close Kill Zone - Lower probability"},
}

func inWindow(t, start, end float64) bool {
	if start <= end {
		return start <= t && t < end
	}
	// Midnight-crossing window
	return t >= start || t < end
}

// Classify maps a UTC timestamp to its session window.
func Classify(ts time.Time) Info {
	utc := ts.UTC()
	decimal := float64(utc.Hour()) + float64(utc.Minute())/60.0

	for _, w := range windows {
		if inWindow(decimal, w.start, w.end) {
			return Info{
				Zone:               w.zone,
				IsActive:           true,
				Multiplier:         w.multiplier,
				OptimalForEntries:  w.optimal,
				VolatilityExpected: w.volatility,
				TimeRemaining:      minutesUntil(decimal, w.end),
				Description:        w.description,
			}
		}
	}

	return Info{
		Zone:               ZoneOffHours,
		IsActive:           false,
		Multiplier:         1.0,
		VolatilityExpected: "low",
		TimeUntilNext:      minutesToNextWindow(decimal),
		Description:        "Off Hours - Lower signal probability",
	}
}

func minutesUntil(now, target float64) int {
	diff := target - now
	if diff < 0 {
		diff += 24
	}
	return int(diff * 60)
}

func minutesToNextWindow(now float64) int {
	next := -1
	for _, w := range windows {
		m := minutesUntil(now, w.start)
		if next == -1 || m < next {
			next = m
		}
	}
	return next
}

// ShouldTrade applies the session decision table to a signal strength.
func ShouldTrade(ts time.Time, strength float64) (bool, string) {
	info := Classify(ts)

	if info.IsActive && strength >= 70 {
		return true, fmt.Sprintf("High-strength signal in %s", info.Zone.Title())
	}
	if info.IsActive && info.OptimalForEntries && strength >= 50 {
		return true, "Signal in optimal kill zone with moderate strength"
	}
	if info.Zone == ZoneAsian {
		return false, "Avoid trading during Asian session - low volume"
	}
	if info.Zone == ZoneOffHours {
		if strength >= 80 {
			return true, "Very high-strength signal - exception for off-hours"
		}
		return false, fmt.Sprintf("%d minutes until next kill zone - wait for better timing", info.TimeUntilNext)
	}
	if info.IsActive && strength < 50 {
		return false, "Signal strength too low even in kill zone"
	}
	return true, "Signal meets criteria for current kill zone"
}

// FormatMinutes renders a minute count as "1h 30m" or "45m".
func FormatMinutes(minutes int) string {
	hours := minutes / 60
	mins := minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
