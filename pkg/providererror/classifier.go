package providererror

import (
	"regexp"
	"strconv"
	"strings"
)

// Classifier classifies provider send errors by provider name.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify analyzes err and returns a ClassifiedError. provider is the
// sending provider's Name(), e.g. "smtp", "ses", "twilio".
func (c *Classifier) Classify(err error, provider string) *ClassifiedError {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	httpStatus := extractHTTPStatus(errStr)

	switch provider {
	case "smtp":
		return c.classifySMTPError(err, errStr, httpStatus)
	case "ses":
		return c.classifySESError(err, errStr, httpStatus)
	case "twilio":
		return c.classifyTwilioError(err, errStr, httpStatus)
	case "onesignal":
		return c.classifyOneSignalError(err, errStr, httpStatus)
	case "teams", "slack", "telegram", "o365":
		return c.classifyWebhookError(provider, err, errStr, httpStatus)
	case "xmpp":
		return c.classifyXMPPError(err, errStr, httpStatus)
	default:
		return c.classifyUnknownProvider(err, errStr, httpStatus)
	}
}

var (
	httpStatusRegex     = regexp.MustCompile(`(?i)status[_\s]code[:\s]*(\d{3})`)
	httpPrefixRegex     = regexp.MustCompile(`(?i)http[/\d.]*\s*(\d{3})`)
	bracketStatusRegex  = regexp.MustCompile(`[\[(](\d{3})[\])]`)
	returnedStatusRegex = regexp.MustCompile(`(?i)returned\s+(\d{3})`)
)

func extractHTTPStatus(errStr string) int {
	for _, re := range []*regexp.Regexp{httpStatusRegex, httpPrefixRegex, returnedStatusRegex, bracketStatusRegex} {
		if matches := re.FindStringSubmatch(errStr); len(matches) >= 2 {
			if status, err := strconv.Atoi(matches[1]); err == nil {
				return status
			}
		}
	}
	return 0
}

func classifyByHTTPStatus(status int) ErrorType {
	switch {
	case status == 429:
		return ErrorTypeProvider
	case status >= 500:
		return ErrorTypeProvider
	case status == 401, status == 403:
		return ErrorTypeProvider
	case status >= 400 && status < 500:
		return ErrorTypeUnknown
	default:
		return ErrorTypeUnknown
	}
}

func containsAny(errStr string, patterns []string) bool {
	errLower := strings.ToLower(errStr)
	for _, pattern := range patterns {
		if strings.Contains(errLower, pattern) {
			return true
		}
	}
	return false
}

func (c *Classifier) classifyUnknownProvider(err error, errStr string, httpStatus int) *ClassifiedError {
	result := &ClassifiedError{Original: err, Provider: "unknown", HTTPStatus: httpStatus, Retryable: true}
	if httpStatus > 0 {
		result.Type = classifyByHTTPStatus(httpStatus)
		result.Retryable = httpStatus >= 500 || httpStatus == 429
		return result
	}
	result.Type = ErrorTypeUnknown
	return result
}
