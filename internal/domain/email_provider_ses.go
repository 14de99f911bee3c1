package domain

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/dispatchhq/notifyd/pkg/crypto"
)

// SESClient is the subset of the AWS SES API the ses provider depends on.
// SendRawEmail (rather than SendEmail) is used so the MIME message go-mail
// built — including HTML alternatives and attachments — is sent byte for
// byte instead of being reconstructed from discrete fields.
type SESClient interface {
	SendRawEmailWithContext(ctx context.Context, input *ses.SendRawEmailInput, opts ...request.Option) (*ses.SendRawEmailOutput, error)
}

// AmazonSESSettings holds the credentials and region for an SES provider instance.
type AmazonSESSettings struct {
	Region             string `json:"region"`
	AccessKey          string `json:"access_key"`
	EncryptedSecretKey string `json:"encrypted_secret_key,omitempty"`

	// SecretKey holds the decoded secret key; never persisted.
	SecretKey string `json:"secret_key,omitempty"`
}

func (a *AmazonSESSettings) DecryptSecretKey(passphrase string) error {
	secretKey, err := crypto.DecryptFromHexString(a.EncryptedSecretKey, passphrase)
	if err != nil {
		return fmt.Errorf("failed to decrypt SES secret key: %w", err)
	}
	a.SecretKey = secretKey
	return nil
}

func (a *AmazonSESSettings) EncryptSecretKey(passphrase string) error {
	encryptedSecretKey, err := crypto.EncryptString(a.SecretKey, passphrase)
	if err != nil {
		return fmt.Errorf("failed to encrypt SES secret key: %w", err)
	}
	a.EncryptedSecretKey = encryptedSecretKey
	return nil
}

func (a *AmazonSESSettings) Validate(passphrase string) error {
	if a.Region == "" {
		return fmt.Errorf("region is required for SES provider")
	}
	if a.AccessKey == "" {
		return fmt.Errorf("access key is required for SES provider")
	}
	if a.SecretKey != "" {
		if err := a.EncryptSecretKey(passphrase); err != nil {
			return err
		}
	}
	return nil
}
