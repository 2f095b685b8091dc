package weather

import (
	"strings"
	"testing"
)

func TestDeriveAlertsFixedOrder(t *testing.T) {
	alerts := DeriveAlerts(40, 15, ConditionRain)

	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d: %v", len(alerts), alerts)
	}
	if !strings.Contains(alerts[0], "Heat alert") {
		t.Fatalf("expected heat alert first, got %q", alerts[0])
	}
	if !strings.Contains(alerts[1], "Wind alert") {
		t.Fatalf("expected wind alert second, got %q", alerts[1])
	}
	if !strings.Contains(alerts[2], "Rain alert") {
		t.Fatalf("expected rain alert third, got %q", alerts[2])
	}
}

func TestDeriveAlertsThresholds(t *testing.T) {
	tests := []struct {
		name      string
		tempC     float64
		windSpeed float64
		condition string
		want      []string
	}{
		{name: "calm", tempC: 22, windSpeed: 3, condition: "Clear", want: nil},
		{name: "heat boundary excluded", tempC: 35, windSpeed: 0, condition: "Clear", want: nil},
		{name: "just above heat", tempC: 35.1, windSpeed: 0, condition: "Clear", want: []string{"Heat alert"}},
		{name: "cold boundary excluded", tempC: 5, windSpeed: 0, condition: "Clear", want: nil},
		{name: "just below cold", tempC: 4.9, windSpeed: 0, condition: "Clear", want: []string{"Cold alert"}},
		{name: "wind boundary excluded", tempC: 20, windSpeed: 10, condition: "Clear", want: nil},
		{name: "storm", tempC: 20, windSpeed: 2, condition: ConditionStorm, want: []string{"Storm alert"}},
		{name: "cold storm", tempC: -2, windSpeed: 12, condition: ConditionStorm, want: []string{"Cold alert", "Wind alert", "Storm alert"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := DeriveAlerts(tt.tempC, tt.windSpeed, tt.condition)

			if len(alerts) != len(tt.want) {
				t.Fatalf("expected %d alerts, got %d: %v", len(tt.want), len(alerts), alerts)
			}
			for i, prefix := range tt.want {
				if !strings.Contains(alerts[i], prefix) {
					t.Fatalf("expected alert %d to contain %q, got %q", i, prefix, alerts[i])
				}
			}
		})
	}
}
