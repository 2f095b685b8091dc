package weather

import "fmt"

// Fixed alert thresholds. Evaluation order is part of the contract: heat,
// cold, wind, rain, storm.
const (
	HeatThresholdC  = 35.0
	ColdThresholdC  = 5.0
	WindThresholdMS = 10.0

	ConditionRain  = "Rain"
	ConditionStorm = "Thunderstorm"
)

// DeriveAlerts evaluates the fixed thresholds against a snapshot's metrics and
// returns every alert that applies, in the fixed order.
func DeriveAlerts(tempC, windSpeed float64, condition string) []string {
	var alerts []string

	if tempC > HeatThresholdC {
		alerts = append(alerts, fmt.Sprintf("Heat alert: temperature is %.1f°C. Keep crops irrigated and avoid midday field work.", tempC))
	}
	if tempC < ColdThresholdC {
		alerts = append(alerts, fmt.Sprintf("Cold alert: temperature is %.1f°C. Protect sensitive crops from frost.", tempC))
	}
	if windSpeed > WindThresholdMS {
		alerts = append(alerts, fmt.Sprintf("Wind alert: wind speed is %.1f m/s. Secure covers and delay spraying.", windSpeed))
	}
	if condition == ConditionRain {
		alerts = append(alerts, "Rain alert: rainfall expected. Check drainage and postpone irrigation.")
	}
	if condition == ConditionStorm {
		alerts = append(alerts, "Storm alert: thunderstorms expected. Move equipment and livestock to shelter.")
	}

	return alerts
}
