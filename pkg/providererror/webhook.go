package providererror

// Shared patterns for the HTTP/JSON webhook-style providers (Teams, Slack,
// Telegram, o365/Graph): a recipient-addressing problem versus an
// infrastructure problem look the same across these APIs, so one
// classifier covers all four.
var webhookRecipientPatterns = []string{
	"channel_not_found", "user_not_found", "chat not found", "bot was blocked",
	"bot was kicked", "forbidden: bot is not a member", "invalid webhook url",
	"recipient not found", "mailbox does not exist",
}

var webhookProviderPatterns = []string{
	"invalid_auth", "token_expired", "account_inactive", "invalid client secret",
	"invalid_grant", "unauthorized_client", "rate limited", "ratelimited",
}

func (c *Classifier) classifyWebhookError(provider string, err error, errStr string, httpStatus int) *ClassifiedError {
	result := &ClassifiedError{Original: err, Provider: provider, HTTPStatus: httpStatus, Retryable: true}

	if containsAny(errStr, webhookRecipientPatterns) {
		result.Type = ErrorTypeRecipient
		result.Retryable = false
		return result
	}
	if containsAny(errStr, webhookProviderPatterns) {
		result.Type = ErrorTypeProvider
		result.Retryable = containsAny(errStr, []string{"rate limited", "ratelimited"})
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
