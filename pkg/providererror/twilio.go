package providererror

// Twilio recipient error patterns (bad/unreachable number, opted out).
var twilioRecipientPatterns = []string{
	"invalid 'to' phone number", "not a valid phone number", "unreachable",
	"is not currently reachable", "is unsubscribed", "blacklisted",
	"21211", "21614", "21610", // Twilio error codes: invalid To, non-mobile, unsubscribed
}

// Twilio provider error patterns (auth, rate limit, account issues).
var twilioProviderPatterns = []string{
	"authenticate", "authentication error", "20003",
	"too many requests", "rate limit", "20429",
	"account suspended", "account not active",
}

func (c *Classifier) classifyTwilioError(err error, errStr string, httpStatus int) *ClassifiedError {
	result := &ClassifiedError{Original: err, Provider: "twilio", HTTPStatus: httpStatus, Retryable: true}

	if containsAny(errStr, twilioRecipientPatterns) {
		result.Type = ErrorTypeRecipient
		result.Retryable = false
		return result
	}
	if containsAny(errStr, twilioProviderPatterns) {
		result.Type = ErrorTypeProvider
		result.Retryable = !containsAny(errStr, []string{"authenticate", "authentication error", "20003"})
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
