package providererror

var xmppRecipientPatterns = []string{
	"item-not-found", "jid-malformed", "service-unavailable: recipient",
	"remote-server-not-found", "forbidden",
}

var xmppProviderPatterns = []string{
	"not-authorized", "authentication rejected", "tls handshake",
	"policy-violation", "connection refused", "connection reset", "dial:",
}

func (c *Classifier) classifyXMPPError(err error, errStr string, httpStatus int) *ClassifiedError {
	result := &ClassifiedError{Original: err, Provider: "xmpp", HTTPStatus: httpStatus, Retryable: true}

	if containsAny(errStr, xmppRecipientPatterns) {
		result.Type = ErrorTypeRecipient
		result.Retryable = false
		return result
	}
	if containsAny(errStr, xmppProviderPatterns) {
		result.Type = ErrorTypeProvider
		result.Retryable = !containsAny(errStr, []string{"not-authorized", "authentication rejected"})
		return result
	}
	result.Type = ErrorTypeUnknown
	result.Retryable = true
	return result
}
