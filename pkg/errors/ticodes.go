package errors

// Wire-visible exception codes for the messaging core. These are returned to
// callers inside ServiceCallResult.Exception and are stable across process
// boundaries, so their string values must never change.
const (
	CodeComGeneralError               = "E_COM_GENERAL_ERROR"
	CodeComMessageSenderUnavailable   = "E_COM_MESSAGE_SENDER_UNAVAILABLE"
	CodeComMessageReceiverUnavailable = "E_COM_MESSAGE_RECEIVER_UNAVAILABLE"
	CodeComMessageExchangeBroken      = "E_COM_MESSAGE_EXCHANGE_BROKEN"
	CodeComServiceExecTimeout         = "E_COM_SERVICE_EXEC_TIMEOUT"
	CodeComServiceNotRegistered       = "E_COM_SERVICE_NOT_REGISTERED"
	CodeComServiceNotFound            = "E_COM_SERVICE_NOT_FOUND"
	CodeComServiceHandlerNotFound     = "E_COM_SERVICE_HANDLER_NOT_FOUND"
	CodeComRetryAttemptsExceeded      = "E_COM_RETRY_ATTEMPTS_EXCEEDED"
	CodeSecMessageTamperingDetected   = "E_SEC_MESSAGE_TAMPERING_DETECTED"
	CodeSecUnauthorizedAccess         = "E_SEC_UNAUTHORIZED_ACCESS"
	CodeGenSystemCacheUnavailable     = "E_GEN_SYSTEM_CACHE_UNAVAILABLE"
)

func ErrServiceNotRegistered(serviceAlias, domain string) *AppError {
	return New(CodeComServiceNotRegistered, "service alias '"+serviceAlias+"' is not registered in domain '"+domain+"'", nil)
}

func ErrServiceExecTimeout(messageID string) *AppError {
	return New(CodeComServiceExecTimeout, "service call "+messageID+" timed out", nil)
}

func ErrServiceNotFound(serviceAlias string) *AppError {
	return New(CodeComServiceNotFound, "no service registered for alias '"+serviceAlias+"'", nil)
}

func ErrServiceHandlerNotFound(serviceAlias, version string) *AppError {
	return New(CodeComServiceHandlerNotFound, "no handler for alias '"+serviceAlias+"' version '"+version+"'", nil)
}

func ErrRetryAttemptsExceeded(cause error) *AppError {
	return New(CodeComRetryAttemptsExceeded, "exceeded maximum retry attempts", cause)
}

func ErrMessageExchangeBroken(cause error) *AppError {
	return New(CodeComMessageExchangeBroken, "message exchange is broken and requires operator intervention", cause)
}

func ErrMessageTamperingDetected(messageID string) *AppError {
	return New(CodeSecMessageTamperingDetected, "message "+messageID+" failed hash verification", nil)
}

func ErrUnauthorizedAccess(serviceAlias string) *AppError {
	return New(CodeSecUnauthorizedAccess, "access denied for service '"+serviceAlias+"'", nil)
}

func ErrSenderUnavailable() *AppError {
	return New(CodeComMessageSenderUnavailable, "message sender is not available", nil)
}

func ErrReceiverUnavailable() *AppError {
	return New(CodeComMessageReceiverUnavailable, "message receiver is not available", nil)
}

func ErrSystemCacheUnavailable() *AppError {
	return New(CodeGenSystemCacheUnavailable, "system cache is not operational", nil)
}
