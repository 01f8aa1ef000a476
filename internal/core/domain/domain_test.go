package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	for _, s := range []string{"minor", "major", "critical"} {
		got, err := ParseSeverity(s)
		require.NoError(t, err)
		assert.Equal(t, Severity(s), got)
	}

	_, err := ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestMatchSeverity(t *testing.T) {
	pick := func(s Severity) string {
		return MatchSeverity(s,
			func() string { return "digest" },
			func() string { return "chat" },
			func() string { return "page" },
		)
	}

	assert.Equal(t, "digest", pick(SeverityMinor))
	assert.Equal(t, "chat", pick(SeverityMajor))
	assert.Equal(t, "page", pick(SeverityCritical))
	assert.Panics(t, func() { pick(Severity("bogus")) })
}

func TestClassificationStricter(t *testing.T) {
	assert.Equal(t, ClassSecret, ClassPublic.Stricter(ClassSecret))
	assert.Equal(t, ClassInternal, ClassInternal.Stricter(ClassPublic))
	assert.Equal(t, ClassSecret, ClassSecret.Stricter(ClassInternal))
}

func TestRetentionPolicyTTL(t *testing.T) {
	p := DefaultRetentionPolicy()
	p.Overrides = map[Group]map[Severity]time.Duration{
		GroupBilling: {SeverityMinor: 90 * 24 * time.Hour},
	}

	assert.Equal(t, 7*24*time.Hour, p.TTL(GroupDB, SeverityMinor))
	assert.Equal(t, 90*24*time.Hour, p.TTL(GroupBilling, SeverityMinor))
	assert.Equal(t, 365*24*time.Hour, p.TTL(GroupBilling, SeverityCritical))

	empty := RetentionPolicy{}
	assert.Equal(t, 30*24*time.Hour, empty.TTL(GroupAuth, SeverityMajor))
}

func TestAlertMessageText(t *testing.T) {
	msg := AlertMessage{
		Kind:        AlertImmediate,
		Severity:    SeverityCritical,
		ErrorID:     "DB-001",
		Fingerprint: "abc",
		RunbookRef:  "https://runbooks/db-001",
		Suppressed:  12,
	}

	text := msg.Text()
	assert.True(t, strings.HasPrefix(text, "[CRITICAL] DB-001"))
	assert.Contains(t, text, "Runbook: https://runbooks/db-001")
	assert.Contains(t, text, "Repeated 12 times since last alert")

	digest := AlertMessage{Kind: AlertDigest, Severity: SeverityMinor, ErrorID: "EMAIL-003", Count: 4}
	assert.Contains(t, digest.Text(), "[DIGEST] EMAIL-003")
	assert.Contains(t, digest.Text(), "4 occurrences since")
}
