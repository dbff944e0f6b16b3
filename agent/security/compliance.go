package security

import "sort"

// SeverityBreakdown counts findings per severity.
type SeverityBreakdown struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Framework is one compliance framework sub-score.
type Framework struct {
	Score  float64  `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// Compliance is the aggregate compliance assessment.
type Compliance struct {
	OverallScore    float64              `json:"overall_score"`
	Total           int                  `json:"total_vulnerabilities"`
	Severity        SeverityBreakdown    `json:"severity_breakdown"`
	Frameworks      map[string]Framework `json:"frameworks"`
	Recommendations []string             `json:"recommendations,omitempty"`
}

var owaspCategories = map[string]string{
	"injection":       "injection",
	"authentication":  "authentication",
	"data_exposure":   "information_disclosure",
	"xxe":             "xxe",
	"access_control":  "access_control",
	"security_config": "configuration",
	"xss":             "xss",
	"deserialization": "deserialization",
	"components":      "components",
	"logging":         "logging",
}

// Deduction points per finding severity.
const (
	criticalDeduction = 25
	highDeduction     = 15
	mediumDeduction   = 8
	lowDeduction      = 3
)

// Assess scores the findings against severity deductions and framework
// rules. The overall score floors at zero.
func Assess(vulns []Vulnerability) *Compliance {
	breakdown := SeverityBreakdown{
		Critical: countBySeverity(vulns, SeverityCritical),
		High:     countBySeverity(vulns, SeverityHigh),
		Medium:   countBySeverity(vulns, SeverityMedium),
		Low:      countBySeverity(vulns, SeverityLow),
	}
	total := len(vulns)

	deductions := breakdown.Critical*criticalDeduction +
		breakdown.High*highDeduction +
		breakdown.Medium*mediumDeduction +
		breakdown.Low*lowDeduction
	overall := float64(100 - min(deductions, 100))

	var owaspIssues []string
	for name, category := range owaspCategories {
		if countByCategory(vulns, category) > 0 {
			owaspIssues = append(owaspIssues, name)
		}
	}
	sort.Strings(owaspIssues)

	frameworks := map[string]Framework{
		"owasp_top_10": {
			Score:  floorZero(100 - len(owaspIssues)*10),
			Issues: owaspIssues,
		},
		"pci_dss": {
			Score:  floorZero(100 - (breakdown.Critical*30 + breakdown.High*20)),
			Issues: issuesIf(breakdown.Critical+breakdown.High > 0, "Data protection", "Access control"),
		},
		"iso_27001": {
			Score:  floorZero(100 - total*5),
			Issues: issuesIf(total > 5, "Information security management"),
		},
		"nist_cybersecurity": {
			Score:  floorZero(100 - (breakdown.Critical*25 + breakdown.High*15)),
			Issues: issuesIf(breakdown.Critical+breakdown.High > 0, "Identify", "Protect", "Detect"),
		},
	}

	c := &Compliance{
		OverallScore: overall,
		Total:        total,
		Severity:     breakdown,
		Frameworks:   frameworks,
	}

	if overall < 70 {
		c.Recommendations = append(c.Recommendations,
			"Immediate remediation required for critical security issues")
	}
	if breakdown.Critical > 0 {
		c.Recommendations = append(c.Recommendations,
			"Address all critical vulnerabilities within 24 hours")
	}
	if breakdown.High > 3 {
		c.Recommendations = append(c.Recommendations,
			"Implement security monitoring and alerting")
	}
	c.Recommendations = append(c.Recommendations,
		"Conduct regular penetration testing",
		"Implement security training for development team",
		"Establish incident response procedures",
	)
	return c
}

func floorZero(v int) float64 {
	if v < 0 {
		return 0
	}
	return float64(v)
}

func issuesIf(cond bool, issues ...string) []string {
	if !cond {
		return nil
	}
	return issues
}
