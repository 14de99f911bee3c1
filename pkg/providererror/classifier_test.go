package providererror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_ClassifySMTP(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		name         string
		err          error
		expectedType ErrorType
		retryable    bool
	}{
		{
			name:         "recipient error - mailbox unavailable",
			err:          errors.New("550 5.1.1 mailbox unavailable"),
			expectedType: ErrorTypeRecipient,
			retryable:    false,
		},
		{
			name:         "provider error - greylisted",
			err:          errors.New("451 greylisted, try again later"),
			expectedType: ErrorTypeProvider,
			retryable:    true,
		},
		{
			name:         "provider error - connection timeout",
			err:          errors.New("dial tcp: connection timeout"),
			expectedType: ErrorTypeProvider,
			retryable:    true,
		},
		{
			name:         "unknown error falls back to http status",
			err:          errors.New("smtp server returned status code: 503"),
			expectedType: ErrorTypeProvider,
			retryable:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifier.Classify(tt.err, "smtp")
			assert.Equal(t, tt.expectedType, result.Type)
			assert.Equal(t, tt.retryable, result.Retryable)
			assert.Equal(t, "smtp", result.Provider)
		})
	}
}

func TestClassifier_ClassifySES(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		name         string
		err          error
		expectedType ErrorType
		retryable    bool
	}{
		{
			name:         "recipient error - message rejected",
			err:          errors.New("MessageRejected: Email address is not verified"),
			expectedType: ErrorTypeRecipient,
			retryable:    false,
		},
		{
			name:         "provider error - throttling",
			err:          errors.New("ThrottlingException: Rate exceeded"),
			expectedType: ErrorTypeProvider,
			retryable:    true,
		},
		{
			name:         "provider error - access denied",
			err:          errors.New("AccessDeniedException: User is not authorized"),
			expectedType: ErrorTypeProvider,
			retryable:    false,
		},
		{
			name:         "unknown error",
			err:          errors.New("some random error"),
			expectedType: ErrorTypeUnknown,
			retryable:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifier.Classify(tt.err, "ses")
			assert.Equal(t, tt.expectedType, result.Type)
			assert.Equal(t, tt.retryable, result.Retryable)
		})
	}
}

func TestClassifier_ClassifyTwilio(t *testing.T) {
	classifier := NewClassifier()

	result := classifier.Classify(errors.New("21211: invalid 'To' phone number"), "twilio")
	assert.Equal(t, ErrorTypeRecipient, result.Type)
	assert.False(t, result.Retryable)

	result = classifier.Classify(errors.New("20429: too many requests"), "twilio")
	assert.Equal(t, ErrorTypeProvider, result.Type)
	assert.True(t, result.Retryable)
}

func TestClassifier_ClassifyWebhookProviders(t *testing.T) {
	classifier := NewClassifier()

	for _, provider := range []string{"teams", "slack", "telegram", "o365"} {
		result := classifier.Classify(errors.New("channel_not_found"), provider)
		assert.Equal(t, ErrorTypeRecipient, result.Type, provider)
		assert.Equal(t, provider, result.Provider)
	}

	result := classifier.Classify(errors.New("graph sendMail returned 503: service unavailable"), "o365")
	assert.Equal(t, ErrorTypeProvider, result.Type)
	assert.True(t, result.Retryable)
}

func TestClassifier_ClassifyXMPP(t *testing.T) {
	classifier := NewClassifier()

	result := classifier.Classify(errors.New("xmpp: authentication rejected"), "xmpp")
	assert.Equal(t, ErrorTypeProvider, result.Type)
	assert.False(t, result.Retryable)

	result = classifier.Classify(errors.New("xmpp: dial: connection refused"), "xmpp")
	assert.Equal(t, ErrorTypeProvider, result.Type)
	assert.True(t, result.Retryable)
}

func TestClassifier_NilError(t *testing.T) {
	classifier := NewClassifier()
	assert.Nil(t, classifier.Classify(nil, "smtp"))
}

func TestClassifier_UnknownProvider(t *testing.T) {
	classifier := NewClassifier()
	result := classifier.Classify(errors.New("boom"), "carrier-pigeon")
	assert.Equal(t, ErrorTypeUnknown, result.Type)
	assert.Equal(t, "unknown", result.Provider)
}
