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
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Market-data and arbitrage error codes
const (
	// Permanent "not supported" conditions. These are evaluation outcomes,
	// not faults: callers report them and move on, they are never retried.
	CodePairUnavailable Code = "PAIR_UNAVAILABLE"
	CodeEmptyOrderBook  Code = "EMPTY_ORDER_BOOK"
	CodeUnconvertible   Code = "UNCONVERTIBLE"
	CodeQuotesEqual     Code = "QUOTES_EQUAL"
	CodeNoProfit        Code = "NO_PROFIT"
	CodeNoArbitrage     Code = "NO_ARBITRAGE"
	CodeUnknownExchange Code = "UNKNOWN_EXCHANGE"
	CodeFiatRateFailed  Code = "FIAT_RATE_FAILED"

	// Order execution
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeOrderRejected     Code = "ORDER_REJECTED"
	CodeOrderStale        Code = "ORDER_STALE"
	CodeOrderNotFound     Code = "ORDER_NOT_FOUND"

	// Transient venue failures, safe to retry with backoff.
	CodeExchangeUnavailable Code = "EXCHANGE_UNAVAILABLE"
	CodeCircuitOpen         Code = "CIRCUIT_OPEN"
)

// messages maps codes to default human-readable messages.
var messages = map[Code]string{
	CodeRequiredField:        "a required field is missing",
	CodeInvalidInput:         "invalid input",
	CodeInvalidState:         "invalid state",
	CodeNotFound:             "not found",
	CodeValidationError:      "validation failed",
	CodeConfigurationError:   "invalid configuration",
	CodeExternalServiceError: "external service error",
	CodeServiceTimeout:       "service timed out",
	CodeServiceUnavailable:   "service unavailable",
	CodeRateLimitExceeded:    "rate limit exceeded",
	CodeInternalError:        "internal error",
	CodeUnknownError:         "unknown error",

	CodePairUnavailable: "trading pair not listed",
	CodeEmptyOrderBook:  "order book has no quotes",
	CodeUnconvertible:   "no conversion path to the reference currency",
	CodeQuotesEqual:     "quote currencies must differ",
	CodeNoProfit:        "no profit after fees",
	CodeNoArbitrage:     "best bid and ask are on the same venue",
	CodeUnknownExchange: "exchange is not configured",
	CodeFiatRateFailed:  "fiat exchange rate unavailable",

	CodeInsufficientFunds: "insufficient balance",
	CodeOrderRejected:     "order rejected by exchange",
	CodeOrderStale:        "order status polling timed out",
	CodeOrderNotFound:     "order not found",

	CodeExchangeUnavailable: "exchange temporarily unavailable",
	CodeCircuitOpen:         "circuit breaker open",
}

// retryable is the set of codes representing transient failures.
// Everything else is either a permanent condition or an evaluation outcome.
var retryable = map[Code]bool{
	CodeExchangeUnavailable:  true,
	CodeServiceTimeout:       true,
	CodeServiceUnavailable:   true,
	CodeRateLimitExceeded:    true,
	CodeExternalServiceError: true,
}

// rejections are expected evaluation outcomes: an opportunity was examined
// and turned down for a reason the operator should see, not a fault.
var rejections = map[Code]bool{
	CodePairUnavailable: true,
	CodeEmptyOrderBook:  true,
	CodeUnconvertible:   true,
	CodeQuotesEqual:     true,
	CodeNoProfit:        true,
	CodeNoArbitrage:     true,
}
