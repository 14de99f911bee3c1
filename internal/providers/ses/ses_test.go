package ses_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers/ses"
	"github.com/dispatchhq/notifyd/internal/template"
)

func TestProvider_ConnectBuildsSessionFromStaticCredentials(t *testing.T) {
	settings := domain.AmazonSESSettings{Region: "us-east-1", AccessKey: "AKIAEXAMPLE", SecretKey: "secret"}
	p := ses.New(settings, "noreply@example.com", "Notifyd", template.NewEngine(t.TempDir()), nil)

	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, "ses", p.Name())
	require.NoError(t, p.Close(context.Background()))
}

func TestProvider_ConnectIsIdempotent(t *testing.T) {
	settings := domain.AmazonSESSettings{Region: "us-east-1"}
	p := ses.New(settings, "noreply@example.com", "Notifyd", template.NewEngine(t.TempDir()), nil)

	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Connect(context.Background()))
}
