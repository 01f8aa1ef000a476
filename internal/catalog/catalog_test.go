package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/faultline/internal/core/domain"
)

func TestLoadFileYAML(t *testing.T) {
	cat, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)

	def, ok := cat.Lookup("DB-001")
	require.True(t, ok)
	assert.Equal(t, domain.GroupDB, def.Group)
	assert.Equal(t, domain.SeverityCritical, def.Severity)
	assert.Equal(t, domain.RetrySafe, def.RetryStrategy)
	assert.Equal(t, 503, def.HTTPStatus)
	assert.False(t, def.UserVisible)
	assert.Equal(t, "https://runbooks.internal/db/connection-pool-exhausted", def.RunbookRef)

	vis, ok := cat.Lookup("AUTH-001")
	require.True(t, ok)
	assert.True(t, vis.UserVisible)
	assert.Equal(t, "errors.auth.invalid_credentials", vis.UserMessageKey)

	limit, ok := cat.Lookup("RATE_LIMIT-001")
	require.True(t, ok)
	assert.Equal(t, domain.GroupRateLimit, limit.Group)
	assert.Equal(t, domain.RetryNone, limit.RetryStrategy)
}

func TestLoadFileTOML(t *testing.T) {
	cat, err := LoadFile("testdata/catalog.toml")
	require.NoError(t, err)

	def, ok := cat.Lookup("BILLING-001")
	require.True(t, ok)
	assert.Equal(t, domain.RetryIdempotent, def.RetryStrategy)
	assert.Equal(t, 402, def.HTTPStatus)

	queue, ok := cat.Lookup("QUEUE-004")
	require.True(t, ok)
	assert.Equal(t, 500, queue.HTTPStatus)
}

func TestLoadJSON(t *testing.T) {
	data := []byte(`{"errors":[{"id":"SEARCH-010","severity":"major","retry":"safe","http_status":502}]}`)
	cat, err := Load(data, FormatJSON)
	require.NoError(t, err)

	_, ok := cat.Lookup("SEARCH-010")
	assert.True(t, ok)
}

func TestLookupResolvesEverySourceID(t *testing.T) {
	data, err := os.ReadFile("testdata/catalog.yaml")
	require.NoError(t, err)

	src, err := decode(data, FormatYAML)
	require.NoError(t, err)

	cat, err := FromSource(src)
	require.NoError(t, err)

	for _, e := range src.Errors {
		_, ok := cat.Lookup(e.ID)
		assert.True(t, ok, "missing %s", e.ID)
	}
	assert.Equal(t, len(src.Errors)+len(domain.ReservedDefinitions()), cat.Len())
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		problem string
	}{
		{
			name: "duplicate id",
			yaml: `
errors:
  - {id: DB-001, severity: critical}
  - {id: DB-001, severity: minor}
`,
			problem: "duplicate id",
		},
		{
			name:    "malformed id",
			yaml:    `errors: [{id: db-1, severity: minor}]`,
			problem: "GROUP-NNN",
		},
		{
			name:    "four digits",
			yaml:    `errors: [{id: DB-0001, severity: minor}]`,
			problem: "GROUP-NNN",
		},
		{
			name:    "visible without key",
			yaml:    `errors: [{id: AUTH-002, severity: minor, user_visible: true}]`,
			problem: "user_visible requires user_message_key",
		},
		{
			name:    "unknown group",
			yaml:    `errors: [{id: PAYMENTS-001, severity: minor}]`,
			problem: "unknown group",
		},
		{
			name:    "group mismatch",
			yaml:    `errors: [{id: DB-003, group: REDIS, severity: minor}]`,
			problem: "does not match id prefix",
		},
		{
			name:    "bad severity",
			yaml:    `errors: [{id: DB-004, severity: fatal}]`,
			problem: "unknown severity",
		},
		{
			name:    "bad status",
			yaml:    `errors: [{id: DB-005, severity: minor, http_status: 200}]`,
			problem: "outside 400..599",
		},
		{
			name:    "reserved id",
			yaml:    `errors: [{id: GENERAL-000, severity: minor}]`,
			problem: "reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml), FormatYAML)
			require.Error(t, err)

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Contains(t, le.Error(), tt.problem)
		})
	}
}

func TestLoadReportsAllProblems(t *testing.T) {
	_, err := Load([]byte(`
errors:
  - {id: DB-001, severity: critical}
  - {id: DB-001, severity: critical}
  - {id: nope, severity: minor}
`), FormatYAML)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Len(t, le.Problems, 2)
}

func TestLoadFileSetsSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`errors: [{id: x, severity: minor}]`), 0o600))

	_, err := LoadFile(path)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, path, le.Source)

	_, err = LoadFile("catalog.ini")
	require.True(t, errors.As(err, &le))
}

func TestResolveFallsBackToGeneral000(t *testing.T) {
	cat, err := New(nil, nil)
	require.NoError(t, err)

	def, err := cat.Resolve("X-999")
	var unknown *UnknownIDError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "X-999", unknown.ID)

	assert.Equal(t, domain.UnknownErrorID, def.ID)
	assert.Equal(t, domain.SeverityMajor, def.Severity)
	assert.Equal(t, domain.RetryNone, def.RetryStrategy)
	assert.False(t, def.UserVisible)

	_, ok := cat.Lookup("X-999")
	assert.False(t, ok)
}

func TestAllSorted(t *testing.T) {
	cat, err := New([]domain.ErrorDefinition{
		{ID: "REDIS-002", Severity: domain.SeverityMajor},
		{ID: "AI-001", Severity: domain.SeverityMinor},
	}, nil)
	require.NoError(t, err)

	var ids []string
	for _, d := range cat.All() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"AI-001", "GENERAL-000", "GENERAL-001", "REDIS-002"}, ids)
}

func TestMessagesResolve(t *testing.T) {
	cat, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)
	msgs := cat.Messages()

	text, ok := msgs.Resolve("errors.auth.invalid_credentials", "")
	require.True(t, ok)
	assert.Equal(t, "The email or password you entered is incorrect.", text)

	text, ok = msgs.Resolve("errors.auth.invalid_credentials", "de-DE,de;q=0.9,en;q=0.5")
	require.True(t, ok)
	assert.Equal(t, "Die E-Mail-Adresse oder das Passwort ist falsch.", text)

	// German bundle lacks this key; English is used.
	text, ok = msgs.Resolve("errors.rate_limit.exceeded", "de")
	require.True(t, ok)
	assert.Equal(t, "Too many requests. Please slow down.", text)

	_, ok = msgs.Resolve("errors.unknown", "en")
	assert.False(t, ok)

	assert.True(t, msgs.Has("errors.generic"))
	assert.False(t, msgs.Has("errors.unknown"))
}
