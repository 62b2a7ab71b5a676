package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeFeedConnectionFailed: "Failed to connect to price feed",
	CodeFeedReconnecting:     "Price feed reconnecting",
	CodeFeedClosed:           "Price feed connection closed",
	CodeFeedSendFailed:       "Failed to send price feed message",
	CodeMalformedMessage:     "Malformed feed message",
	CodeStalePrice:           "Price is stale",
	CodeHeartbeatTimeout:     "Heartbeat acknowledgement timed out",

	CodeChainConnectionFailed: "Failed to connect to chain node",
	CodeChainRPCError:         "Chain RPC call failed",
	CodeContractCallFailed:    "Smart contract call failed",
	CodeGasEstimationFailed:   "Gas estimation failed",

	CodeNoQuoteAvailable:     "No router produced a usable quote",
	CodeInvalidQuote:         "Invalid quote data",
	CodeSlippageExceeded:     "Best quote below minimum acceptable output",
	CodeApprovalFailed:       "Token approval failed",
	CodeSwapSubmissionFailed: "Swap transaction submission failed",
	CodeSwapNotConfirmed:     "Swap transaction not confirmed",

	CodeMetricsFetchFailed: "Failed to fetch pair metrics",
	CodeUnknownPair:        "Pair is not configured",
	CodeEvaluationInFlight: "Evaluation already in progress",

	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
