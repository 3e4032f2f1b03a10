package model

import (
	"fmt"
	"strings"
)

// ImpactLevel is the operational severity of an incident. Higher is worse.
type ImpactLevel int

const (
	ImpactInfo ImpactLevel = iota
	ImpactLow
	ImpactMedium
	ImpactHigh
	ImpactCritical
)

var impactNames = [...]string{"info", "low", "medium", "high", "critical"}

func (l ImpactLevel) String() string {
	if l < ImpactInfo || l > ImpactCritical {
		return fmt.Sprintf("ImpactLevel(%d)", int(l))
	}
	return impactNames[l]
}

// Raise returns the level n steps higher, capped at Critical.
func (l ImpactLevel) Raise(n int) ImpactLevel {
	r := l + ImpactLevel(n)
	if r > ImpactCritical {
		return ImpactCritical
	}
	return r
}

// ParseImpactLevel parses a case-insensitive level name.
func ParseImpactLevel(s string) (ImpactLevel, error) {
	for i, name := range impactNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return ImpactLevel(i), nil
		}
	}
	return ImpactInfo, fmt.Errorf("unknown impact level %q", s)
}

func (l ImpactLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *ImpactLevel) UnmarshalText(b []byte) error {
	v, err := ParseImpactLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ImpactAssessment is the scored headline of a run.
type ImpactAssessment struct {
	Level            ImpactLevel `json:"level"`
	Rationale        []string    `json:"rationale"`
	AffectedServices []string    `json:"affected_services"`
}
