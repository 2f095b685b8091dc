// Package weather looks up current conditions for a city and derives alert
// conditions from the returned metrics.
package weather

// Snapshot is one ephemeral current-conditions reading. It is produced fresh
// per lookup and never stored.
type Snapshot struct {
	City        string
	TempC       float64
	Description string
	Condition   string // OpenWeather main category, e.g. "Rain"
	WindSpeed   float64 // m/s
	Humidity    int
	Alerts      []string
}

// HasAlerts reports whether any alert condition was derived.
func (s Snapshot) HasAlerts() bool {
	return len(s.Alerts) > 0
}
