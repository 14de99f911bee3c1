package template_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestEngine_RenderUsesStandardContext(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "welcome.liquid", "Hi {{ username }}, you said: {{ message }}")

	e := template.NewEngine(dir)
	data := template.StandardContext(domain.Actor{Name: "Ada"}, "hello there", "Welcome", nil)

	out, err := e.Render(context.Background(), "welcome.liquid", data)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada, you said: hello there", out)
}

func TestEngine_CachesCompiledTemplate(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "once.liquid", "{{ message }}")

	e := template.NewEngine(dir)
	first, err := e.Get("once.liquid")
	require.NoError(t, err)

	second, err := e.Get("once.liquid")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEngine_MissingTemplateIsErrTemplate(t *testing.T) {
	e := template.NewEngine(t.TempDir())
	_, err := e.Render(context.Background(), "nope.liquid", nil)
	require.Error(t, err)

	var target *domain.ErrTemplate
	assert.ErrorAs(t, err, &target)
}

func TestEngine_RenderAsync(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "async.liquid", "async: {{ message }}")

	e := template.NewEngine(dir)
	ch := e.RenderAsync(context.Background(), "async.liquid", map[string]any{"message": "go"})
	result := <-ch
	require.NoError(t, result.Err)
	assert.Equal(t, "async: go", result.HTML)
}
