package providererror

// OneSignal recipient error patterns (unknown/unsubscribed player id).
var oneSignalRecipientPatterns = []string{
	"all included players are not subscribed", "invalid player_ids",
	"player_id not found", "not subscribed",
}

var oneSignalProviderPatterns = []string{
	"invalid app_id", "app_id not found", "unauthorized", "invalid api key",
}

func (c *Classifier) classifyOneSignalError(err error, errStr string, httpStatus int) *ClassifiedError {
	result := &ClassifiedError{Original: err, Provider: "onesignal", HTTPStatus: httpStatus, Retryable: true}

	if containsAny(errStr, oneSignalRecipientPatterns) {
		result.Type = ErrorTypeRecipient
		result.Retryable = false
		return result
	}
	if containsAny(errStr, oneSignalProviderPatterns) {
		result.Type = ErrorTypeProvider
		result.Retryable = false
		return result
	}
	if httpStatus > 0 {
		result.Type = classifyByHTTPStatus(httpStatus)
		result.Retryable = httpStatus >= 500 || httpStatus == 429
		return result
	}
	result.Type = ErrorTypeUnknown
	result.Retryable = true
	return result
}
