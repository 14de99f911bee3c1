package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchhq/notifyd/internal/domain"
)

func TestAmazonSESSettings_EncryptDecryptSecretKeyRoundTrips(t *testing.T) {
	s := &domain.AmazonSESSettings{Region: "us-east-1", AccessKey: "AKIA...", SecretKey: "super-secret"}
	require.NoError(t, s.Validate("passphrase"))
	assert.NotEmpty(t, s.EncryptedSecretKey)

	decrypted := &domain.AmazonSESSettings{EncryptedSecretKey: s.EncryptedSecretKey}
	require.NoError(t, decrypted.DecryptSecretKey("passphrase"))
	assert.Equal(t, "super-secret", decrypted.SecretKey)
}

func TestAmazonSESSettings_DecryptSecretKeyFailsOnWrongPassphrase(t *testing.T) {
	s := &domain.AmazonSESSettings{Region: "us-east-1", AccessKey: "AKIA...", SecretKey: "super-secret"}
	require.NoError(t, s.Validate("passphrase"))

	decrypted := &domain.AmazonSESSettings{EncryptedSecretKey: s.EncryptedSecretKey}
	assert.Error(t, decrypted.DecryptSecretKey("wrong-passphrase"))
}

func TestAmazonSESSettings_ValidateRequiresRegionAndAccessKey(t *testing.T) {
	assert.Error(t, (&domain.AmazonSESSettings{}).Validate("passphrase"))
	assert.Error(t, (&domain.AmazonSESSettings{Region: "us-east-1"}).Validate("passphrase"))
}
