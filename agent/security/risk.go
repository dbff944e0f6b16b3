package security

import "math"

// RiskScorer condenses findings and compliance into a 0-10 risk score.
type RiskScorer interface {
	Score(vulns []Vulnerability, compliance *Compliance) float64
}

// WeightedScorer weighs high findings at 0.3 and medium at 0.1, scaled by
// how far compliance falls short, capped at 10.
type WeightedScorer struct{}

func (WeightedScorer) Score(vulns []Vulnerability, compliance *Compliance) float64 {
	high := float64(countBySeverity(vulns, SeverityHigh))
	medium := float64(countBySeverity(vulns, SeverityMedium))
	complianceRatio := compliance.OverallScore / 100

	risk := (high*0.3 + medium*0.1) * (1 - complianceRatio) * 10
	return round2(math.Min(risk, 10))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
