package domain

import (
	"fmt"
	"strings"
)

// Text renders the message for chat and paging channels.
func (m AlertMessage) Text() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Error: %s\n", m.ErrorID)
	fmt.Fprintf(&b, "Fingerprint: %s\n", m.Fingerprint)
	if m.TenantID != "" {
		fmt.Fprintf(&b, "Tenant: %s\n", m.TenantID)
	}
	if m.Sample != nil && m.Sample.CorrelationID != "" {
		fmt.Fprintf(&b, "Correlation: %s\n", m.Sample.CorrelationID)
	}
	if m.RunbookRef != "" {
		fmt.Fprintf(&b, "Runbook: %s\n", m.RunbookRef)
	}

	switch m.Kind {
	case AlertDigest:
		fmt.Fprintf(&b, "\n%d occurrences since %s\n", m.Count, m.WindowStart.UTC().Format("2006-01-02 15:04 MST"))
	default:
		if m.Suppressed > 0 {
			fmt.Fprintf(&b, "\nRepeated %d times since last alert\n", m.Suppressed)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m AlertMessage) header() string {
	if m.Kind == AlertDigest {
		return fmt.Sprintf("[DIGEST] %s", m.ErrorID)
	}
	return MatchSeverity(m.Severity,
		func() string { return fmt.Sprintf("[MINOR] %s", m.ErrorID) },
		func() string { return fmt.Sprintf("[MAJOR] %s", m.ErrorID) },
		func() string { return fmt.Sprintf("[CRITICAL] %s", m.ErrorID) },
	)
}
