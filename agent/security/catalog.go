package security

// Vulnerability is one finding from a scan.
type Vulnerability struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Severity       string  `json:"severity"`
	CVSSScore      float64 `json:"cvss_score"`
	Category       string  `json:"category"`
	Location       string  `json:"location"`
	Recommendation string  `json:"recommendation"`
	Analysis       string  `json:"llm_analysis,omitempty"`
}

// Severity levels, worst first.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Scan types select which catalog categories apply.
const (
	ScanComprehensive  = "comprehensive"
	ScanWeb            = "web"
	ScanInfrastructure = "infrastructure"
)

// catalog is the built-in finding set. A real scanner integration would
// replace this; the filtering and scoring pipeline stays the same.
var catalog = []Vulnerability{
	{
		ID:             "VULN-001",
		Title:          "SQL Injection",
		Description:    "Input validation bypass allowing SQL injection attacks",
		Severity:       SeverityHigh,
		CVSSScore:      8.1,
		Category:       "injection",
		Location:       "/api/users",
		Recommendation: "Implement parameterized queries and input validation",
	},
	{
		ID:             "VULN-002",
		Title:          "Cross-Site Scripting (XSS)",
		Description:    "Stored XSS vulnerability in user comments",
		Severity:       SeverityMedium,
		CVSSScore:      6.1,
		Category:       "xss",
		Location:       "/comments/view",
		Recommendation: "Sanitize user input and implement CSP headers",
	},
	{
		ID:             "VULN-003",
		Title:          "Insecure Direct Object Reference",
		Description:    "Missing authorization checks on sensitive endpoints",
		Severity:       SeverityHigh,
		CVSSScore:      7.5,
		Category:       "access_control",
		Location:       "/admin/users",
		Recommendation: "Implement proper authorization checks",
	},
	{
		ID:             "VULN-004",
		Title:          "Sensitive Data Exposure",
		Description:    "Debug information exposed in production",
		Severity:       SeverityMedium,
		CVSSScore:      5.3,
		Category:       "information_disclosure",
		Location:       "/debug/info",
		Recommendation: "Disable debug mode in production",
	},
	{
		ID:             "VULN-005",
		Title:          "Security Misconfiguration",
		Description:    "Default credentials still in use",
		Severity:       SeverityCritical,
		CVSSScore:      9.8,
		Category:       "configuration",
		Location:       "Database connection",
		Recommendation: "Change default passwords immediately",
	},
}

// Findings returns the catalog subset for a scan type. Unknown scan types
// run a limited scan over the first three entries.
func Findings(scanType string) []Vulnerability {
	switch scanType {
	case ScanComprehensive:
		return append([]Vulnerability(nil), catalog...)
	case ScanWeb:
		return filterByCategory("injection", "xss")
	case ScanInfrastructure:
		return filterByCategory("configuration", "access_control")
	default:
		return append([]Vulnerability(nil), catalog[:3]...)
	}
}

func filterByCategory(categories ...string) []Vulnerability {
	var out []Vulnerability
	for _, v := range catalog {
		for _, c := range categories {
			if v.Category == c {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

func countBySeverity(vulns []Vulnerability, severity string) int {
	n := 0
	for _, v := range vulns {
		if v.Severity == severity {
			n++
		}
	}
	return n
}

func countByCategory(vulns []Vulnerability, category string) int {
	n := 0
	for _, v := range vulns {
		if v.Category == category {
			n++
		}
	}
	return n
}
