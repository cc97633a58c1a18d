package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/paste-resolver/internal/config"
	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

type fakeApp struct {
	outcome  resolver.Outcome
	runErr   error
	ran      bool
	resolved []string
	closed   int
}

func (f *fakeApp) Run(context.Context) error {
	f.ran = true
	return f.runErr
}

func (f *fakeApp) Resolve(_ context.Context, rawURL string) resolver.Outcome {
	f.resolved = append(f.resolved, rawURL)
	return f.outcome
}

func (f *fakeApp) Close(context.Context) error {
	f.closed++
	return nil
}

func withFakeApp(t *testing.T, app *fakeApp) {
	t.Helper()
	orig := newApp
	newApp = func(context.Context, config.Config, *zap.Logger) (App, error) {
		return app, nil
	}
	t.Cleanup(func() { newApp = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveCommandPrintsEnvelope(t *testing.T) {
	app := &fakeApp{outcome: resolver.Outcome{RequestID: "r1", Success: true, Content: "hello world"}}
	withFakeApp(t, app)

	out, err := execute(t, "resolve", "https://pastebin.com/abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://pastebin.com/abc"}, app.resolved)
	assert.Contains(t, out, `"success": true`)
	assert.Contains(t, out, `"result": "hello world"`)
	assert.Equal(t, 1, app.closed)
}

func TestResolveCommandFailsOnUnsuccessfulOutcome(t *testing.T) {
	app := &fakeApp{outcome: resolver.Outcome{
		RequestID: "r2",
		Err:       resolver.NewError(resolver.KindUnsupportedTarget, "unsupported url", resolver.ErrNoAdapter),
	}}
	withFakeApp(t, app)

	out, err := execute(t, "resolve", "https://nowhere.example")
	require.ErrorIs(t, err, errResolutionFailed)
	assert.Contains(t, out, `"error": "UnsupportedTarget"`)
	assert.Equal(t, 1, app.closed)
}

func TestResolveCommandRequiresURL(t *testing.T) {
	withFakeApp(t, &fakeApp{})

	_, err := execute(t, "resolve")
	assert.Error(t, err)
}

func TestServeCommandRunsApp(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app)

	_, err := execute(t, "serve")
	require.NoError(t, err)
	assert.True(t, app.ran)

	app.runErr = errors.New("listen failed")
	_, err = execute(t, "serve")
	assert.EqualError(t, err, "listen failed")
}

func TestRootRejectsMissingConfigFile(t *testing.T) {
	withFakeApp(t, &fakeApp{})

	_, err := execute(t, "--config", "/nonexistent/resolver.yaml", "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestResolveAppWithoutInjection(t *testing.T) {
	_, err := resolveApp(context.Background())
	assert.Error(t, err)
}
