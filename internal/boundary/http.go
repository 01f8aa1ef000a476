package boundary

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/fault"
)

// HandlerFunc is an http handler that may return an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// FromRequest extracts the request context from r.
func FromRequest(r *http.Request) RequestContext {
	return RequestContext{
		Method:         r.Method,
		Path:           r.URL.Path,
		CorrelationID:  r.Header.Get(HeaderRequestID),
		TenantID:       r.Header.Get(HeaderTenantID),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		Instance:       r.URL.RequestURI(),
	}
}

// Middleware assigns the correlation id before business code runs so faults
// raised with fault.RaiseCtx carry it. Panics become GENERAL-000 responses.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(HeaderRequestID)
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := fault.WithCorrelationID(r.Context(), cid)
		if tenant := r.Header.Get(HeaderTenantID); tenant != "" {
			ctx = fault.WithTenantID(ctx, tenant)
		}
		r = r.WithContext(ctx)
		w.Header().Set(HeaderRequestID, cid)

		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.WriteError(w, r, fault.Newf(domain.UnknownErrorID, "panic: %v", rec))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Wrap adapts an error returning handler. Returned errors go through Handle.
func (h *Handler) Wrap(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.WriteError(w, r, err)
		}
	})
}

// WriteError handles err for r and writes the problem response.
func (h *Handler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	WriteProblem(w, h.Handle(r.Context(), err, FromRequest(r)))
}
