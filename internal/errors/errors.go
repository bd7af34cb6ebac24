// Package errors provides the AppError type shared by the classifier core and its collaborators.
// Codes map onto gRPC status codes and HTTP statuses so every surface reports failures the same way.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Code identifies the class of an AppError.
type Code int

const (
	CodeUnknown Code = iota
	CodeInternal
	CodeInvalidInput
	CodeNotFound
	CodeUnavailable
	CodeTimeout
	CodeCancelled
	CodeFrameDecodeFailed
	CodeFrameUnavailable
	CodeAlertUnavailable
	CodeConfigInvalid
)

var codeNames = map[Code]string{
	CodeUnknown:           "UNKNOWN",
	CodeInternal:          "INTERNAL",
	CodeInvalidInput:      "INVALID_INPUT",
	CodeNotFound:          "NOT_FOUND",
	CodeUnavailable:       "UNAVAILABLE",
	CodeTimeout:           "TIMEOUT",
	CodeCancelled:         "CANCELLED",
	CodeFrameDecodeFailed: "FRAME_DECODE_FAILED",
	CodeFrameUnavailable:  "FRAME_UNAVAILABLE",
	CodeAlertUnavailable:  "ALERT_UNAVAILABLE",
	CodeConfigInvalid:     "CONFIG_INVALID",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return codeNames[CodeUnknown]
}

// grpcCodeMap maps Code to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	CodeUnknown:           codes.Unknown,
	CodeInternal:          codes.Internal,
	CodeInvalidInput:      codes.InvalidArgument,
	CodeNotFound:          codes.NotFound,
	CodeUnavailable:       codes.Unavailable,
	CodeTimeout:           codes.DeadlineExceeded,
	CodeCancelled:         codes.Canceled,
	CodeFrameDecodeFailed: codes.InvalidArgument,
	CodeFrameUnavailable:  codes.Unavailable,
	CodeAlertUnavailable:  codes.Unavailable,
	CodeConfigInvalid:     codes.InvalidArgument,
}

var httpStatusMap = map[Code]int{
	CodeInvalidInput:      http.StatusBadRequest,
	CodeFrameDecodeFailed: http.StatusUnsupportedMediaType,
	CodeConfigInvalid:     http.StatusBadRequest,
	CodeNotFound:          http.StatusNotFound,
	CodeUnavailable:       http.StatusServiceUnavailable,
	CodeFrameUnavailable:  http.StatusServiceUnavailable,
	CodeAlertUnavailable:  http.StatusServiceUnavailable,
	CodeTimeout:           http.StatusGatewayTimeout,
	CodeCancelled:         http.StatusRequestTimeout,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// HTTPStatus returns the HTTP status the server reports for this error.
func (e *AppError) HTTPStatus() int {
	if s, ok := httpStatusMap[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// GRPCStatus returns a gRPC status with code and metadata attached as a Struct detail.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Error())
	fields := map[string]any{"code": e.Code.String(), "message": e.Message}
	for k, v := range e.Metadata {
		fields[k] = v
	}
	detail, err := structpb.NewStruct(fields)
	if err != nil {
		return st
	}
	packed, err := anypb.New(detail)
	if err != nil {
		return st
	}
	if withDetail, err := st.WithDetails(packed); err == nil {
		st = withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError recovers an AppError from a gRPC status error.
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		var s *structpb.Struct
		switch d := detail.(type) {
		case *structpb.Struct:
			s = d
		case *anypb.Any:
			var inner structpb.Struct
			if d.UnmarshalTo(&inner) == nil {
				s = &inner
			}
		}
		if s == nil {
			continue
		}
		return fromStruct(s)
	}

	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message()}
}

func fromStruct(s *structpb.Struct) *AppError {
	out := &AppError{Code: CodeUnknown}
	for k, v := range s.AsMap() {
		str, _ := v.(string)
		switch k {
		case "code":
			out.Code = codeFromName(str)
		case "message":
			out.Message = str
		default:
			out.WithMetadata(k, str)
		}
	}
	return out
}

func codeFromName(name string) Code {
	for c, n := range codeNames {
		if n == name {
			return c
		}
	}
	return CodeUnknown
}

// grpcToCode maps gRPC codes back to our codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return CodeInvalidInput
	case codes.NotFound:
		return CodeNotFound
	case codes.Unavailable:
		return CodeUnavailable
	case codes.DeadlineExceeded:
		return CodeTimeout
	case codes.Canceled:
		return CodeCancelled
	case codes.Internal:
		return CodeInternal
	default:
		return CodeUnknown
	}
}

// FromError returns the AppError in err's chain. Context errors are mapped
// through their gRPC status to CodeCancelled or CodeTimeout; anything else
// becomes CodeInternal.
func FromError(err error) *AppError {
	if appErr, ok := As(err); ok {
		return appErr
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		out := FromGRPCError(status.FromContextError(err).Err())
		out.Cause = err
		return out
	}
	return Wrap(err, CodeInternal, "internal error")
}

// IsCode checks if an error chain contains an AppError with the given code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout, CodeFrameUnavailable:
		return true
	default:
		return false
	}
}
