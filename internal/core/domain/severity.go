package domain

import "fmt"

// Severity drives alert routing. It is decided from the catalog at the
// boundary, never at the raise site.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates a catalog severity value.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityMinor, SeverityMajor, SeverityCritical:
		return Severity(s), nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// MatchSeverity dispatches on s. Every case must be supplied, so adding a
// severity breaks every call site until it is handled.
func MatchSeverity[T any](s Severity, minor, major, critical func() T) T {
	switch s {
	case SeverityMinor:
		return minor()
	case SeverityMajor:
		return major()
	case SeverityCritical:
		return critical()
	}
	panic(fmt.Sprintf("unmatched severity %q", s))
}

// Group is the subsystem an error id belongs to. It is also the id prefix.
type Group string

const (
	GroupAuth       Group = "AUTH"
	GroupDB         Group = "DB"
	GroupRedis      Group = "REDIS"
	GroupSearch     Group = "SEARCH"
	GroupQueue      Group = "QUEUE"
	GroupEmail      Group = "EMAIL"
	GroupAI         Group = "AI"
	GroupFrontend   Group = "FRONTEND"
	GroupAgents     Group = "AGENTS"
	GroupBilling    Group = "BILLING"
	GroupStorage    Group = "STORAGE"
	GroupValidation Group = "VALIDATION"
	GroupRateLimit  Group = "RATE_LIMIT"
	GroupGeneral    Group = "GENERAL"
)

var knownGroups = map[Group]bool{
	GroupAuth: true, GroupDB: true, GroupRedis: true, GroupSearch: true,
	GroupQueue: true, GroupEmail: true, GroupAI: true, GroupFrontend: true,
	GroupAgents: true, GroupBilling: true, GroupStorage: true,
	GroupValidation: true, GroupRateLimit: true, GroupGeneral: true,
}

// Valid reports whether g is one of the known groups.
func (g Group) Valid() bool {
	return knownGroups[g]
}

// RetryStrategy is the catalog-declared retry policy for an error id.
type RetryStrategy string

const (
	RetryNone       RetryStrategy = "none"
	RetrySafe       RetryStrategy = "safe"
	RetryIdempotent RetryStrategy = "idempotent"
)

// ParseRetryStrategy validates a catalog retry value. Empty means none.
func ParseRetryStrategy(s string) (RetryStrategy, error) {
	switch RetryStrategy(s) {
	case "":
		return RetryNone, nil
	case RetryNone, RetrySafe, RetryIdempotent:
		return RetryStrategy(s), nil
	}
	return "", fmt.Errorf("unknown retry strategy %q", s)
}

// Classification controls where a context field may travel.
type Classification int

const (
	ClassPublic Classification = iota
	ClassInternal
	ClassSecret
)

// ParseClassification validates a redaction rule value.
func ParseClassification(s string) (Classification, error) {
	switch s {
	case "public":
		return ClassPublic, nil
	case "internal":
		return ClassInternal, nil
	case "secret":
		return ClassSecret, nil
	}
	return ClassInternal, fmt.Errorf("unknown classification %q", s)
}

func (c Classification) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassInternal:
		return "internal"
	case ClassSecret:
		return "secret"
	}
	return "unknown"
}

// Stricter returns the more restrictive of c and o.
func (c Classification) Stricter(o Classification) Classification {
	if o > c {
		return o
	}
	return c
}
