package grpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/age-gate/internal/ageapi"
	"github.com/example/age-gate/internal/logging"
)

// PredictMethod is the fully qualified unary method exposed by the estimator.
// Requests and responses are google.protobuf.Struct documents with the same
// fields as the JSON API.
const PredictMethod = "/ageestimation.v1.AgeEstimation/Predict"

// DialAgeEstimator returns a ready-to-use gRPC client for the age-estimation service.
func DialAgeEstimator(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (ageapi.Client, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)
	conn, err := grpc.DialContext(dialCtx, addr, opts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_age_estimator", "", err)
		logger.Error("failed to dial age estimator", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewAgeEstimator(conn, logger), conn, nil
}

// NewAgeEstimator wraps an existing connection.
func NewAgeEstimator(conn grpc.ClientConnInterface, logger *zap.Logger) ageapi.Client {
	return &grpcAgeEstimator{conn: conn, logger: logger.Named("ageapi_grpc")}
}

type grpcAgeEstimator struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

func (g *grpcAgeEstimator) Predict(ctx context.Context, req ageapi.PredictRequest) (*ageapi.Prediction, error) {
	fields := map[string]interface{}{
		"img":    req.Image,
		"secure": req.Secure,
	}
	if req.LevelOfAssurance != "" {
		fields["level_of_assurance"] = string(req.LevelOfAssurance)
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.encode_request", "", err)
	}

	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, PredictMethod, in, out); err != nil {
		if apiErr := statusToAPIError(err); apiErr != nil {
			return nil, apiErr
		}
		wrapped := logging.NewOperationError("grpcclient.predict", "", err)
		g.logger.Error("age estimator call failed", zap.Error(wrapped))
		return nil, wrapped
	}

	body, err := json.Marshal(out.AsMap())
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.decode_response", "", err)
	}
	return ageapi.DecodePrediction(body)
}

// statusToAPIError converts application level status errors into the same
// error shape the HTTP transport produces. Cancellation and deadlines are
// left as transport failures.
func statusToAPIError(err error) *ageapi.Error {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	code := st.Code()
	if code == codes.Canceled || code == codes.DeadlineExceeded || errors.Is(err, context.Canceled) {
		return nil
	}
	return &ageapi.Error{StatusCode: httpStatus(code), Body: []byte(st.Message())}
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}
