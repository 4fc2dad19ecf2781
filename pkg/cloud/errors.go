package cloud

import (
	"errors"

	"github.com/aws/smithy-go"
)

// Provider classification codes the pipeline branches on. Branching happens
// on these codes only, never on message text.
const (
	CodeInvalidParameter = "InvalidParameterValueException"
	CodeTooManyRequests  = "TooManyRequestsException"
	CodeThrottling       = "ThrottlingException"
	CodeResourceNotFound = "ResourceNotFoundException"
	CodeNotFound         = "NotFoundException"
	CodeNoSuchEntity     = "NoSuchEntity"
	CodeResourceConflict = "ResourceConflictException"
	CodeEntityExists     = "EntityAlreadyExists"
	CodeLimitExceeded    = "LimitExceededException"
)

// ErrorCode returns the provider's stable classification code, or empty if
// err did not originate from the provider API.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsCode reports whether err carries the given classification code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// IsRolePropagationDelay recognizes the failure mode of creating a function
// against a just-created execution role the compute platform has not
// propagated yet. This is the retry predicate for function creation.
func IsRolePropagationDelay(err error) bool {
	return IsCode(err, CodeInvalidParameter)
}

// IsRateLimited recognizes the request-rate ceiling responses the gateway
// management API enforces. This is the retry predicate for gateway calls.
func IsRateLimited(err error) bool {
	code := ErrorCode(err)
	return code == CodeTooManyRequests || code == CodeThrottling || code == CodeLimitExceeded
}

// IsNotFound reports whether err indicates a missing remote resource,
// across the per-service spellings of that condition.
func IsNotFound(err error) bool {
	code := ErrorCode(err)
	return code == CodeResourceNotFound || code == CodeNotFound || code == CodeNoSuchEntity
}

// IsAlreadyExists reports whether err indicates a name collision with an
// existing remote resource.
func IsAlreadyExists(err error) bool {
	code := ErrorCode(err)
	return code == CodeResourceConflict || code == CodeEntityExists
}
