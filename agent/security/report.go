package security

import (
	"fmt"
	"strings"
	"time"
)

// BuildReport renders the markdown assessment report.
func BuildReport(target string, vulns []Vulnerability, compliance *Compliance, executiveSummary string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Security Assessment Report\n\n")
	fmt.Fprintf(&b, "**Target:** %s  \n", target)
	fmt.Fprintf(&b, "**Date:** %s  \n", time.Now().Format("2006-01-02"))
	fmt.Fprintf(&b, "**Assessment Type:** Comprehensive Security Scan\n\n")

	fmt.Fprintf(&b, "## Executive Summary\n\n%s\n\n", executiveSummary)

	fmt.Fprintf(&b, "## Key Findings\n\n")
	fmt.Fprintf(&b, "- **Total Vulnerabilities:** %d\n", len(vulns))
	fmt.Fprintf(&b, "- **Overall Compliance Score:** %g%%\n", compliance.OverallScore)
	fmt.Fprintf(&b, "- **Critical Issues:** %d\n", compliance.Severity.Critical)
	fmt.Fprintf(&b, "- **High Priority Issues:** %d\n\n", compliance.Severity.High)

	fmt.Fprintf(&b, "## Vulnerability Details\n\n")
	for i, v := range vulns {
		if i == 10 {
			break
		}
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, v.Title)
		fmt.Fprintf(&b, "- **Severity:** %s\n", titleCase(v.Severity))
		fmt.Fprintf(&b, "- **CVSS Score:** %g\n", v.CVSSScore)
		fmt.Fprintf(&b, "- **Location:** %s\n", v.Location)
		fmt.Fprintf(&b, "- **Description:** %s\n", v.Description)
		fmt.Fprintf(&b, "- **Recommendation:** %s\n\n", v.Recommendation)
	}

	fmt.Fprintf(&b, "## Compliance Assessment\n\n")
	fmt.Fprintf(&b, "### Overall Score: %g%%\n\n", compliance.OverallScore)
	fmt.Fprintf(&b, "### Framework Scores:\n")
	for _, name := range []string{"owasp_top_10", "pci_dss", "iso_27001", "nist_cybersecurity"} {
		fw := compliance.Frameworks[name]
		status := "❌ Non-Compliant"
		switch {
		case fw.Score >= 80:
			status = "✅ Compliant"
		case fw.Score >= 60:
			status = "⚠️ Needs Attention"
		}
		fmt.Fprintf(&b, "- **%s:** %g%% %s\n", strings.ToUpper(name), fw.Score, status)
	}

	fmt.Fprintf(&b, "\n## Recommendations\n\n")
	fmt.Fprintf(&b, "### Immediate Actions (0-24 hours)\n")
	for _, v := range vulns {
		if v.Severity == SeverityCritical {
			fmt.Fprintf(&b, "- Address %s: %s\n", v.Title, v.Recommendation)
		}
	}
	fmt.Fprintf(&b, "\n### Short-term Actions (1-30 days)\n")
	for _, v := range vulns {
		if v.Severity == SeverityHigh {
			fmt.Fprintf(&b, "- Resolve %s\n", v.Title)
		}
	}
	fmt.Fprintf(&b, `
### Long-term Actions (30+ days)
- Implement continuous security monitoring
- Establish regular penetration testing schedule
- Enhance security awareness training
- Develop incident response procedures
- Implement automated security scanning in CI/CD
`)
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
