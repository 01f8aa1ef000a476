package redaction

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/fault"
)

func sampleContext() map[string]any {
	return map[string]any{
		"tenantId":  "t-1",
		"contactId": 42,
		"email":     "jane@example.com",
		"password":  "hunter2",
		"note":      "free text",
		"request": map[string]any{
			"method":        "POST",
			"authorization": "Bearer abc",
			"headers":       map[string]string{"Cookie": "sid=1", "Accept": "json"},
		},
		"items": []any{
			map[string]any{"dealId": "d-1", "apiKey": "k"},
			"plain",
		},
	}
}

func TestRedactClassifies(t *testing.T) {
	res := Default().Redact(sampleContext())

	assert.Equal(t, "t-1", res.Stored["tenantId"])
	assert.Equal(t, "jane@example.com", res.Stored["email"])
	assert.Equal(t, Mask, res.Stored["password"])
	assert.Equal(t, "free text", res.Stored["note"])

	req := res.Stored["request"].(map[string]any)
	assert.Equal(t, Mask, req["authorization"])
	assert.Equal(t, "POST", req["method"])
	headers := req["headers"].(map[string]any)
	assert.Equal(t, Mask, headers["Cookie"])
	assert.Equal(t, "json", headers["Accept"])

	item := res.Stored["items"].([]any)[0].(map[string]any)
	assert.Equal(t, Mask, item["apiKey"])
	assert.Equal(t, "d-1", item["dealId"])
}

func TestRedactPublicView(t *testing.T) {
	res := Default().Redact(sampleContext())

	assert.Equal(t, "t-1", res.Public["tenantId"])
	assert.Equal(t, 42, res.Public["contactId"])
	assert.Equal(t, Mask, res.Public["password"])
	assert.NotContains(t, res.Public, "email")
	assert.NotContains(t, res.Public, "note")
	// unclassified parent keeps its children off the wire
	assert.NotContains(t, res.Public, "request")
}

func TestRedactIdempotent(t *testing.T) {
	rules := Default()
	once := rules.Redact(sampleContext())
	twice := rules.Redact(once.Stored)

	assert.Equal(t, once.Stored, twice.Stored)
	assert.Equal(t, once.Public, twice.Public)
	assert.Equal(t, once.Public, rules.Redact(once.Public).Stored)
}

func TestRedactDoesNotMutateInput(t *testing.T) {
	in := sampleContext()
	Default().Redact(in)
	assert.Equal(t, "hunter2", in["password"])
	assert.Equal(t, "Bearer abc", in["request"].(map[string]any)["authorization"])
}

func TestMostRestrictiveWins(t *testing.T) {
	rules := MustCompile([]Rule{
		{Pattern: `^userToken$`, Class: domain.ClassPublic},
		{Pattern: `token`, Class: domain.ClassSecret},
		{Pattern: `^user`, Class: domain.ClassInternal},
	})

	assert.Equal(t, domain.ClassSecret, rules.Classify("userToken", "userToken"))
	assert.Equal(t, domain.ClassInternal, rules.Classify("userName", "userName"))
	assert.Equal(t, domain.ClassInternal, rules.Classify("unmatched", "unmatched"))
}

func TestDottedPathRules(t *testing.T) {
	rules := MustCompile([]Rule{
		{Pattern: `^payment\.card\.number$`, Class: domain.ClassSecret},
		{Pattern: `^payment$|^card$|^number$`, Class: domain.ClassPublic},
	})

	res := rules.Redact(map[string]any{
		"payment": map[string]any{"card": map[string]any{"number": "4111"}},
		"number":  7,
	})

	card := res.Stored["payment"].(map[string]any)["card"].(map[string]any)
	assert.Equal(t, Mask, card["number"])
	assert.Equal(t, 7, res.Public["number"])
}

func TestRedactNilAndNilRules(t *testing.T) {
	res := Redact(nil, Default())
	assert.Empty(t, res.Stored)
	assert.Empty(t, res.Public)

	var none *Rules
	res = none.Redact(map[string]any{"tenantId": "t"})
	assert.Equal(t, "t", res.Stored["tenantId"])
	assert.NotContains(t, res.Public, "tenantId")
}

func TestCompileRejectsBadPattern(t *testing.T) {
	_, err := Compile([]Rule{{Pattern: "(", Class: domain.ClassSecret}})
	require.Error(t, err)
}

type credentials struct {
	User     string
	Password string
	Tokens   []string `json:"apiToken"`
}

func TestRedactNestedFieldsAndStructs(t *testing.T) {
	res := Default().Redact(map[string]any{
		"payment": fault.Fields{"password": "hunter2", "attempt": 2},
		"login":   credentials{User: "u", Password: "hunter3", Tokens: []string{"t1"}},
		"session": &credentials{User: "v", Password: "hunter4"},
		"batch":   []credentials{{User: "w", Password: "hunter5"}},
	})

	payment := res.Stored["payment"].(map[string]any)
	assert.Equal(t, Mask, payment["password"])
	assert.Equal(t, 2, payment["attempt"])

	login := res.Stored["login"].(map[string]any)
	assert.Equal(t, "u", login["User"])
	assert.Equal(t, Mask, login["Password"])
	assert.Equal(t, Mask, login["apiToken"])

	// session is a secret key name, so the whole value is masked
	assert.Equal(t, Mask, res.Stored["session"])

	batch := res.Stored["batch"].([]any)
	require.Len(t, batch, 1)
	assert.Equal(t, Mask, batch[0].(map[string]any)["Password"])

	for _, secret := range []string{"hunter2", "hunter3", "hunter4", "hunter5", "t1"} {
		assert.NotContains(t, fmt.Sprint(res.Stored), secret)
		assert.NotContains(t, fmt.Sprint(res.Public), secret)
	}
}

func TestRedactKeepsScalarStructs(t *testing.T) {
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	res := Default().Redact(map[string]any{"failedAt": at, "raw": []byte("x")})

	assert.Equal(t, at, res.Stored["failedAt"])
	assert.Equal(t, []byte("x"), res.Stored["raw"])
}
