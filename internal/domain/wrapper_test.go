package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchhq/notifyd/internal/domain"
)

func TestNewWrapperFromJSON_StringMessagePopulatesContent(t *testing.T) {
	w, err := domain.NewWrapperFromJSON([]byte(`{"provider":"dummy","message":"hi there"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "hi there", w.Message.Content)
	assert.Nil(t, w.Message.Body)
}

func TestNewWrapperFromJSON_ObjectMessagePopulatesBody(t *testing.T) {
	w, err := domain.NewWrapperFromJSON([]byte(`{"provider":"dummy","message":{"title":"hi","text":"there"}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "", w.Message.Content)
	body, ok := w.Message.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi", body["title"])
}

func TestNewWrapperFromJSON_MissingProviderIsValidationError(t *testing.T) {
	_, err := domain.NewWrapperFromJSON([]byte(`{"message":"hi"}`), nil)
	require.Error(t, err)
	var validationErr *domain.ErrValidation
	assert.ErrorAs(t, err, &validationErr)
}

func TestNewWrapperFromJSON_MalformedJSONIsParseError(t *testing.T) {
	_, err := domain.NewWrapperFromJSON([]byte(`not json`), nil)
	require.Error(t, err)
	var parseErr *domain.ErrParse
	assert.ErrorAs(t, err, &parseErr)
}
