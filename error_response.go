package gateway

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Severity separates caller mistakes from server or dependency faults.
type Severity string

const (
	SeverityClient Severity = "client"
	SeverityServer Severity = "server"
)

// ErrorResponse is the transport-neutral shape of a failure.
type ErrorResponse struct {
	Code     string   `json:"errorCode"`
	Message  string   `json:"message"`
	Severity Severity `json:"-"`
	Status   int      `json:"status"`
}

type errorClass struct {
	severity Severity
	status   int
}

var errorClasses = map[string]errorClass{
	TextCodeDuplicateIdentity:    {SeverityClient, http.StatusConflict},
	TextCodeIDPUnavailable:       {SeverityServer, http.StatusServiceUnavailable},
	TextCodeIdentityNotFound:     {SeverityClient, http.StatusNotFound},
	TextCodeInvalidCredentials:   {SeverityClient, http.StatusUnauthorized},
	TextCodeAccountDisabled:      {SeverityClient, http.StatusForbidden},
	TextCodeInvalidQuantity:      {SeverityClient, http.StatusBadRequest},
	TextCodeMissingRequiredField: {SeverityClient, http.StatusBadRequest},
	TextCodeOrderNotFound:        {SeverityClient, http.StatusNotFound},
	TextCodeInvalidOrderStatus:   {SeverityClient, http.StatusBadRequest},
	TextCodeNotAuthorized:        {SeverityClient, http.StatusForbidden},
	TextCodeInvalidInput:         {SeverityClient, http.StatusBadRequest},
	TextCodeTokenExpired:         {SeverityClient, http.StatusUnauthorized},
	TextCodeTokenInvalid:         {SeverityClient, http.StatusUnauthorized},
	TextCodeAccessDenied:         {SeverityClient, http.StatusForbidden},
	TextCodeRouteNotFound:        {SeverityClient, http.StatusNotFound},
	TextCodeInternal:             {SeverityServer, http.StatusInternalServerError},
}

// ResponseFor maps any error to its stable code, message, severity and a
// suggested HTTP status. Errors outside the taxonomy become INTERNAL_ERROR and
// never leak their text.
func ResponseFor(err error) ErrorResponse {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) || rich == nil {
		return internalResponse()
	}

	class, ok := errorClasses[rich.TextCode]
	if !ok {
		return internalResponse()
	}

	return ErrorResponse{
		Code:     rich.TextCode,
		Message:  rich.Message,
		Severity: class.severity,
		Status:   class.status,
	}
}

// IsClientError reports whether err maps to a caller-side failure.
func IsClientError(err error) bool {
	return ResponseFor(err).Severity == SeverityClient
}

func internalResponse() ErrorResponse {
	return ErrorResponse{
		Code:     ErrInternal.TextCode,
		Message:  ErrInternal.Message,
		Severity: SeverityServer,
		Status:   http.StatusInternalServerError,
	}
}
