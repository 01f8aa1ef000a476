package boundary

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vietddude/faultline/internal/fault"
)

// ErrorInfoDomain is the errdetails.ErrorInfo domain for boundary errors.
const ErrorInfoDomain = "faultline"

const (
	mdRequestID      = "x-request-id"
	mdFingerprint    = "x-error-fingerprint"
	mdTenantID       = "x-tenant-id"
	mdAcceptLanguage = "accept-language"
)

// UnaryServerInterceptor runs every unary call through the boundary. Errors
// that are already gRPC statuses and carry no fault pass through unchanged.
func (h *Handler) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		rc := RequestContext{
			Method:         "GRPC",
			Path:           info.FullMethod,
			CorrelationID:  firstValue(md, mdRequestID),
			TenantID:       firstValue(md, mdTenantID),
			AcceptLanguage: firstValue(md, mdAcceptLanguage),
			Instance:       info.FullMethod,
		}

		cid := rc.CorrelationID
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx = fault.WithCorrelationID(ctx, cid)
		if rc.TenantID != "" {
			ctx = fault.WithTenantID(ctx, rc.TenantID)
		}

		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, isFault := fault.As(err); !isFault {
			if _, isStatus := status.FromError(err); isStatus {
				return resp, err
			}
		}

		wire := h.Handle(ctx, err, rc)
		// SetHeader fails outside a real server stream; the status still
		// carries everything in its details.
		_ = grpc.SetHeader(ctx, metadata.Pairs(
			mdRequestID, wire.CorrelationID,
			mdFingerprint, wire.Fingerprint,
		))
		return nil, wire.GRPCStatus().Err()
	}
}

// GRPCStatus converts the response into a status with an ErrorInfo detail.
func (r WireResponse) GRPCStatus() *status.Status {
	st := status.New(CodeFromHTTP(r.Status), r.Detail)

	meta := r.PublicContext()
	meta["correlationId"] = r.CorrelationID
	meta["fingerprint"] = r.Fingerprint
	if r.TenantID != "" {
		meta["tenantId"] = r.TenantID
	}

	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   r.ErrorID,
		Domain:   ErrorInfoDomain,
		Metadata: meta,
	})
	if err != nil {
		return st
	}
	return withInfo
}

// CodeFromHTTP maps an HTTP status to the closest gRPC code.
func CodeFromHTTP(httpStatus int) codes.Code {
	switch httpStatus {
	case 400:
		return codes.InvalidArgument
	case 401:
		return codes.Unauthenticated
	case 403:
		return codes.PermissionDenied
	case 404:
		return codes.NotFound
	case 409:
		return codes.Aborted
	case 412:
		return codes.FailedPrecondition
	case 429:
		return codes.ResourceExhausted
	case 499:
		return codes.Canceled
	case 501:
		return codes.Unimplemented
	case 503:
		return codes.Unavailable
	case 504:
		return codes.DeadlineExceeded
	}
	if httpStatus >= 400 && httpStatus < 500 {
		return codes.FailedPrecondition
	}
	return codes.Internal
}

func firstValue(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
