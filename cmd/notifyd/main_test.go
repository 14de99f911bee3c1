package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dispatchhq/notifyd/internal/config"
	"github.com/dispatchhq/notifyd/internal/template"
)

func TestBuildRegistry_RegistersEveryProvider(t *testing.T) {
	cfg := &config.Config{}
	engine := template.NewEngine(t.TempDir())

	registry := buildRegistry(cfg, engine)

	want := []string{"dummy", "smtp", "ses", "teams", "slack", "telegram", "twilio", "onesignal", "xmpp", "o365"}
	names := registry.Names()
	for _, name := range want {
		assert.Contains(t, names, name)
	}

	for _, name := range want {
		p, err := registry.New(name, nil)
		assert.NoError(t, err, "provider %q should construct without error", name)
		assert.NotNil(t, p)
		assert.Equal(t, name, p.Name())
	}
}
