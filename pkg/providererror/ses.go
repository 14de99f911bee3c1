package providererror

// SES recipient error patterns.
var sesRecipientPatterns = []string{
	"messagerejected", "email address is not verified", "invalid recipient",
	"mailbox unavailable", "mailbox not found", "user unknown",
	"address rejected", "no recipients", "recipient rejected",
}

// SES provider error patterns.
var sesProviderPatterns = []string{
	"throttling", "throttlingexception", "limitexceeded", "quota exceeded", "daily message quota",
	"serviceunavailable", "service unavailable", "accessdenied", "accessdeniedexception",
	"invalidclienttokenid", "signaturedoesnotmatch", "expiredtoken", "expired token",
	"account is paused", "account paused", "sending paused", "configurationset",
}

func (c *Classifier) classifySESError(err error, errStr string, httpStatus int) *ClassifiedError {
	result := &ClassifiedError{Original: err, Provider: "ses", HTTPStatus: httpStatus, Retryable: true}

	if containsAny(errStr, sesRecipientPatterns) {
		if containsAny(errStr, []string{"sender", "from address"}) && containsAny(errStr, []string{"not verified"}) {
			result.Type = ErrorTypeProvider
			result.Retryable = false
			return result
		}
		result.Type = ErrorTypeRecipient
		result.Retryable = false
		return result
	}
	if containsAny(errStr, sesProviderPatterns) {
		result.Type = ErrorTypeProvider
		result.Retryable = containsAny(errStr, []string{"throttl", "quota"})
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
