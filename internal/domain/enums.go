package domain

import (
	"fmt"
	"time"
)

// Plan enumerates subscriber tiers.
type Plan string

const (
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// ParsePlan converts a raw string into a Plan.
func ParsePlan(value string) (Plan, error) {
	switch Plan(value) {
	case PlanBasic, PlanPremium:
		return Plan(value), nil
	}
	return "", fmt.Errorf("unknown plan %q", value)
}

// Cadence enumerates delivery frequency tiers for preferences.
type Cadence string

const (
	CadenceHourly Cadence = "hourly"
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// ParseCadence converts a raw string into a Cadence.
func ParseCadence(value string) (Cadence, error) {
	switch Cadence(value) {
	case CadenceHourly, CadenceDaily, CadenceWeekly:
		return Cadence(value), nil
	}
	return "", fmt.Errorf("unknown cadence %q", value)
}

// Window returns the minimum interval between two deliveries on this cadence.
func (c Cadence) Window() time.Duration {
	switch c {
	case CadenceHourly:
		return time.Hour
	case CadenceDaily:
		return 24 * time.Hour
	case CadenceWeekly:
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// FactStatus enumerates fact-check verdicts.
type FactStatus string

const (
	StatusVerified      FactStatus = "verified"
	StatusDisputed      FactStatus = "disputed"
	StatusNotVerifiable FactStatus = "not_verifiable"
)

// ParseFactStatus converts a raw string into a FactStatus.
func ParseFactStatus(value string) (FactStatus, error) {
	switch FactStatus(value) {
	case StatusVerified, StatusDisputed, StatusNotVerifiable:
		return FactStatus(value), nil
	}
	return "", fmt.Errorf("unknown fact status %q", value)
}
