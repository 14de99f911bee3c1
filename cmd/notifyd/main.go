// Command notifyd runs the notification dispatch daemon: a TCP listener, a
// Redis pub/sub subscriber, and a Redis stream consumer group all feeding a
// bounded worker pool that fans out to whichever provider a wrapper names.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dispatchhq/notifyd/internal/config"
	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers/dummy"
	"github.com/dispatchhq/notifyd/internal/providers/o365"
	"github.com/dispatchhq/notifyd/internal/providers/onesignal"
	"github.com/dispatchhq/notifyd/internal/providers/ses"
	"github.com/dispatchhq/notifyd/internal/providers/slack"
	"github.com/dispatchhq/notifyd/internal/providers/smtp"
	"github.com/dispatchhq/notifyd/internal/providers/teams"
	"github.com/dispatchhq/notifyd/internal/providers/telegram"
	"github.com/dispatchhq/notifyd/internal/providers/twilio"
	"github.com/dispatchhq/notifyd/internal/providers/xmpp"
	"github.com/dispatchhq/notifyd/internal/queue"
	"github.com/dispatchhq/notifyd/internal/template"
	"github.com/dispatchhq/notifyd/internal/worker"
	"github.com/dispatchhq/notifyd/pkg/logger"
)

var osExit = os.Exit

func main() {
	var host string
	var port int
	var debug bool

	root := &cobra.Command{
		Use:   "notifyd",
		Short: "notifyd dispatches notifications over TCP, Redis pub/sub, and Redis streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), host, port, debug)
		},
	}
	root.Flags().StringVar(&host, "host", "", "TCP listen host, defaults to NOTIFY_DEFAULT_HOST")
	root.Flags().IntVar(&port, "port", 0, "TCP listen port, defaults to NOTIFY_DEFAULT_PORT")
	root.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}

func run(ctx context.Context, host string, port int, debug bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("notifyd: load config: %w", err)
	}
	if host != "" {
		cfg.DefaultHost = host
	}
	if port != 0 {
		cfg.DefaultPort = port
	}
	if debug {
		cfg.Debug = true
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	log := logger.NewLoggerWithLevel(level)
	if cfg.Debug {
		log = log.WithField("debug", true)
	}

	engine := template.NewEngine(cfg.TemplateDir)
	registry := buildRegistry(cfg, engine)

	lc := worker.New(worker.Config{
		RedisDSN:      cfg.Redis,
		Channel:       cfg.Channel,
		StreamName:    cfg.StreamName,
		StreamGroup:   cfg.StreamGroup,
		TCPAddr:       fmt.Sprintf("%s:%d", cfg.DefaultHost, cfg.DefaultPort),
		Queue:         queue.NewConfig(cfg.QueueSize),
		QueueCallback: cfg.QueueCallback,
	}, registry, log)

	return lc.Run(ctx)
}

// buildRegistry registers every provider notifyd ships under the name its
// wrapper JSON addresses it by, matching the original's
// `notify.providers.{name}` dynamic import with a fixed compile-time map.
func buildRegistry(cfg *config.Config, engine template.Engine) *domain.Registry {
	registry := domain.NewRegistry()

	registry.Register("dummy", func(kwargs map[string]any) (domain.Provider, error) {
		return dummy.New(engine, nil), nil
	})
	registry.Register("smtp", func(kwargs map[string]any) (domain.Provider, error) {
		return smtp.New(smtp.Settings{
			Host: cfg.SMTP.Host, Port: cfg.SMTP.Port,
			Username: cfg.SMTP.Username, Password: cfg.SMTP.Password,
			From: cfg.SMTP.From, FromName: cfg.SMTP.FromName,
		}, engine, nil), nil
	})
	registry.Register("ses", func(kwargs map[string]any) (domain.Provider, error) {
		settings := domain.AmazonSESSettings{
			Region: cfg.SES.Region, AccessKey: cfg.SES.AccessKey,
			SecretKey: cfg.SES.SecretKey, EncryptedSecretKey: cfg.SES.EncryptedSecretKey,
		}
		if settings.EncryptedSecretKey != "" {
			if err := settings.DecryptSecretKey(cfg.SecretKey); err != nil {
				return nil, fmt.Errorf("ses: %w", err)
			}
		}
		return ses.New(settings, cfg.SES.From, cfg.SES.FromName, engine, nil), nil
	})
	registry.Register("teams", func(kwargs map[string]any) (domain.Provider, error) {
		return teams.New(teams.Settings{
			ClientID: cfg.Teams.ClientID, ClientSecret: cfg.Teams.ClientSecret,
			TenantID: cfg.Teams.TenantID, DefaultWebhook: cfg.Teams.DefaultWebhook,
		}, engine, nil), nil
	})
	registry.Register("slack", func(kwargs map[string]any) (domain.Provider, error) {
		return slack.New(slack.Settings{BotToken: cfg.Slack.BotToken, APIURL: cfg.Slack.APIURL}, engine, nil), nil
	})
	registry.Register("telegram", func(kwargs map[string]any) (domain.Provider, error) {
		return telegram.New(telegram.Settings{Token: cfg.Telegram.Token}, engine, nil), nil
	})
	registry.Register("twilio", func(kwargs map[string]any) (domain.Provider, error) {
		return twilio.New(twilio.Settings{
			AccountSID: cfg.Twilio.AccountSID, AuthToken: cfg.Twilio.AuthToken,
			From: cfg.Twilio.From, BaseURL: cfg.Twilio.BaseURL,
		}, engine, nil), nil
	})
	registry.Register("onesignal", func(kwargs map[string]any) (domain.Provider, error) {
		return onesignal.New(onesignal.Settings{
			AppID: cfg.OneSignal.AppID, APIKey: cfg.OneSignal.APIKey, BaseURL: cfg.OneSignal.BaseURL,
		}, engine, nil), nil
	})
	registry.Register("xmpp", func(kwargs map[string]any) (domain.Provider, error) {
		return xmpp.New(xmpp.Settings{
			JID: cfg.XMPP.JID, Password: cfg.XMPP.Password, Host: cfg.XMPP.Host, Port: cfg.XMPP.Port,
		}, engine, nil), nil
	})
	registry.Register("o365", func(kwargs map[string]any) (domain.Provider, error) {
		return o365.New(o365.Settings{
			ClientID: cfg.O365.ClientID, ClientSecret: cfg.O365.ClientSecret,
			TenantID: cfg.O365.TenantID, Username: cfg.O365.Username,
		}, engine, nil), nil
	})

	return registry
}
