package boundary

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Wire headers.
const (
	HeaderRequestID   = "X-Request-Id"
	HeaderFingerprint = "X-Error-Fingerprint"
	HeaderTenantID    = "X-Tenant-Id"

	ContentTypeProblem = "application/problem+json"
)

// WireResponse is the problem document returned to callers.
type WireResponse struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	Instance      string `json:"instance,omitempty"`
	ErrorID       string `json:"errorId"`
	CorrelationID string `json:"correlationId"`
	TenantID      string `json:"tenantId,omitempty"`

	// Fingerprint travels as a header, not in the body.
	Fingerprint string `json:"-"`

	public map[string]any
}

// PublicContext returns the context fields cleared for the wire.
func (r WireResponse) PublicContext() map[string]string {
	out := make(map[string]string, len(r.public))
	for k, v := range r.public {
		switch v := v.(type) {
		case string:
			out[k] = v
		case map[string]any, []any, []map[string]any:
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			out[k] = string(b)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// WriteProblem writes resp as application/problem+json with the correlation
// and fingerprint headers.
func WriteProblem(w http.ResponseWriter, resp WireResponse) {
	h := w.Header()
	h.Set("Content-Type", ContentTypeProblem)
	h.Set(HeaderRequestID, resp.CorrelationID)
	if resp.Fingerprint != "" {
		h.Set(HeaderFingerprint, resp.Fingerprint)
	}
	w.WriteHeader(resp.Status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("Failed to write problem response", "error", err)
	}
}
