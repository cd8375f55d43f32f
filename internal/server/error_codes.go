package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument  = 1000
	ErrCodeInvalidJSON      = 1001
	ErrCodeRequestTooLarge  = 1002
	ErrCodeInvalidQuery     = 1003
	ErrCodeInvalidID        = 1004
	ErrCodeInvalidVersion   = 1005
	ErrCodeInvalidType      = 1006
	ErrCodeInvalidOutputs   = 1007
	ErrCodeMissingRequired  = 1009
	ErrCodeInvalidMediaType = 1015

	// Domain state (2xxx)
	ErrCodeFunctionNotFound        = 2001
	ErrCodeFunctionVersionNotFound = 2002
	ErrCodeFunctionTypeNotFound    = 2003
	ErrCodeCodeNotFound            = 2004
	ErrCodeFunctionExists          = 2101
	ErrCodeConflict                = 2102
	ErrCodeCodeNotStaged           = 2103

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeStoreFailure = 4002
	ErrCodeBlobFailure  = 4003
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodeFunctionNotFound
	case 406:
		return ErrCodeInvalidArgument
	case 409:
		return ErrCodeConflict
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
