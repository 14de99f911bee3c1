// Package config loads notifyd's runtime configuration from the
// environment, following the teacher's viper-based LoadWithOptions idiom
// (config/config.go) adapted to spec.md §6's env var list.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the fully resolved set of settings notifyd needs to start: the
// broker connection, ingress addresses/names, queue sizing, and every
// provider's credentials.
type Config struct {
	Redis         string
	Channel       string
	StreamName    string
	StreamGroup   string
	DefaultHost   string
	DefaultPort   int
	QueueSize     int
	QueueCallback string
	TemplateDir   string
	Debug         bool

	// SecretKey decrypts any provider setting stored encrypted at rest (e.g.
	// SES.EncryptedSecretKey), mirroring the teacher's SECRET_KEY resolution.
	SecretKey string

	SMTP      SMTPConfig
	SES       SESConfig
	Teams     TeamsConfig
	Slack     SlackConfig
	Telegram  TelegramConfig
	Twilio    TwilioConfig
	OneSignal OneSignalConfig
	XMPP      XMPPConfig
	O365      O365Config
}

type SMTPConfig struct {
	Host, Username, Password, From, FromName string
	Port                                     int
}

type SESConfig struct {
	Region, AccessKey, SecretKey, EncryptedSecretKey, From, FromName string
}

type TeamsConfig struct {
	ClientID, ClientSecret, TenantID, DefaultWebhook string
}

type SlackConfig struct {
	BotToken, APIURL string
}

type TelegramConfig struct {
	Token string
}

type TwilioConfig struct {
	AccountSID, AuthToken, From, BaseURL string
}

type OneSignalConfig struct {
	AppID, APIKey, BaseURL string
}

type XMPPConfig struct {
	JID, Password, Host string
	Port                int
}

type O365Config struct {
	ClientID, ClientSecret, TenantID, Username string
}

// LoadOptions mirrors the teacher's LoadOptions: an optional .env file,
// tolerated but never required.
type LoadOptions struct {
	EnvFile string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{EnvFile: ".env"})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaultHost, err := os.Hostname()
	if err != nil || defaultHost == "" {
		defaultHost = "0.0.0.0"
	}

	v.SetDefault("NOTIFY_REDIS", "redis://localhost:6379/5")
	v.SetDefault("NOTIFY_CHANNEL", "NotifyChannel")
	v.SetDefault("NOTIFY_WORKER_STREAM", "NotifyStream")
	v.SetDefault("NOTIFY_WORKER_GROUP", "NotifyGroup")
	v.SetDefault("NOTIFY_DEFAULT_HOST", defaultHost)
	v.SetDefault("NOTIFY_DEFAULT_PORT", 8991)
	v.SetDefault("NOTIFY_QUEUE_SIZE", 8)
	v.SetDefault("NOTIFY_QUEUE_CALLBACK", "log")
	v.SetDefault("TEMPLATE_DIR", "templates")
	v.SetDefault("DEBUG", false)

	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM_NAME", "Notify")
	v.SetDefault("SES_FROM_NAME", "Notify")
	v.SetDefault("ONESIGNAL_BASE_URL", "")
	v.SetDefault("TWILIO_BASE_URL", "")
	v.SetDefault("XMPP_PORT", 5222)

	if opts.EnvFile != "" {
		v.SetConfigName(opts.EnvFile)
		v.SetConfigType("env")
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("config: getwd: %w", err)
		}
		v.AddConfigPath(cwd)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Redis:         v.GetString("NOTIFY_REDIS"),
		Channel:       v.GetString("NOTIFY_CHANNEL"),
		StreamName:    v.GetString("NOTIFY_WORKER_STREAM"),
		StreamGroup:   v.GetString("NOTIFY_WORKER_GROUP"),
		DefaultHost:   v.GetString("NOTIFY_DEFAULT_HOST"),
		DefaultPort:   v.GetInt("NOTIFY_DEFAULT_PORT"),
		QueueSize:     v.GetInt("NOTIFY_QUEUE_SIZE"),
		QueueCallback: v.GetString("NOTIFY_QUEUE_CALLBACK"),
		TemplateDir:   v.GetString("TEMPLATE_DIR"),
		Debug:         v.GetBool("DEBUG"),
		SecretKey:     v.GetString("SECRET_KEY"),

		SMTP: SMTPConfig{
			Host: v.GetString("SMTP_HOST"), Port: v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"), Password: v.GetString("SMTP_PASSWORD"),
			From: v.GetString("SMTP_FROM"), FromName: v.GetString("SMTP_FROM_NAME"),
		},
		SES: SESConfig{
			Region: v.GetString("SES_REGION"), AccessKey: v.GetString("SES_ACCESS_KEY"),
			SecretKey: v.GetString("SES_SECRET_KEY"), EncryptedSecretKey: v.GetString("SES_ENCRYPTED_SECRET_KEY"),
			From: v.GetString("SES_FROM"), FromName: v.GetString("SES_FROM_NAME"),
		},
		Teams: TeamsConfig{
			ClientID: v.GetString("TEAMS_CLIENT_ID"), ClientSecret: v.GetString("TEAMS_CLIENT_SECRET"),
			TenantID: v.GetString("TEAMS_TENANT_ID"), DefaultWebhook: v.GetString("TEAMS_DEFAULT_WEBHOOK"),
		},
		Slack: SlackConfig{
			BotToken: v.GetString("SLACK_BOT_TOKEN"), APIURL: v.GetString("SLACK_API_URL"),
		},
		Telegram: TelegramConfig{Token: v.GetString("TELEGRAM_TOKEN")},
		Twilio: TwilioConfig{
			AccountSID: v.GetString("TWILIO_ACCOUNT_SID"), AuthToken: v.GetString("TWILIO_AUTH_TOKEN"),
			From: v.GetString("TWILIO_FROM"), BaseURL: v.GetString("TWILIO_BASE_URL"),
		},
		OneSignal: OneSignalConfig{
			AppID: v.GetString("ONESIGNAL_APP_ID"), APIKey: v.GetString("ONESIGNAL_API_KEY"),
			BaseURL: v.GetString("ONESIGNAL_BASE_URL"),
		},
		XMPP: XMPPConfig{
			JID: v.GetString("XMPP_JID"), Password: v.GetString("XMPP_PASSWORD"),
			Host: v.GetString("XMPP_HOST"), Port: v.GetInt("XMPP_PORT"),
		},
		O365: O365Config{
			ClientID: v.GetString("O365_CLIENT_ID"), ClientSecret: v.GetString("O365_CLIENT_SECRET"),
			TenantID: v.GetString("O365_TENANT_ID"), Username: v.GetString("O365_USERNAME"),
		},
	}

	if cfg.Redis == "" {
		return nil, fmt.Errorf("config: NOTIFY_REDIS must be set")
	}

	return cfg, nil
}
