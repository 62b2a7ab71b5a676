package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Price feed error codes
const (
	CodeFeedConnectionFailed Code = "FEED_CONNECTION_FAILED"
	CodeFeedReconnecting     Code = "FEED_RECONNECTING"
	CodeFeedClosed           Code = "FEED_CLOSED"
	CodeFeedSendFailed       Code = "FEED_SEND_FAILED"
	CodeMalformedMessage     Code = "MALFORMED_MESSAGE"
	CodeStalePrice           Code = "STALE_PRICE"
	CodeHeartbeatTimeout     Code = "HEARTBEAT_TIMEOUT"
)

// Trading and chain error codes
const (
	CodeChainConnectionFailed Code = "CHAIN_CONNECTION_FAILED"
	CodeChainRPCError         Code = "CHAIN_RPC_ERROR"
	CodeContractCallFailed    Code = "CONTRACT_CALL_FAILED"
	CodeGasEstimationFailed   Code = "GAS_ESTIMATION_FAILED"

	CodeNoQuoteAvailable     Code = "NO_QUOTE_AVAILABLE"
	CodeInvalidQuote         Code = "INVALID_QUOTE"
	CodeSlippageExceeded     Code = "SLIPPAGE_EXCEEDED"
	CodeApprovalFailed       Code = "APPROVAL_FAILED"
	CodeSwapSubmissionFailed Code = "SWAP_SUBMISSION_FAILED"
	CodeSwapNotConfirmed     Code = "SWAP_NOT_CONFIRMED"
)

// Pair selection error codes
const (
	CodeMetricsFetchFailed Code = "METRICS_FETCH_FAILED"
	CodeUnknownPair        Code = "UNKNOWN_PAIR"
	CodeEvaluationInFlight Code = "EVALUATION_IN_FLIGHT"
)

// Circuit breaker error codes
const (
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
