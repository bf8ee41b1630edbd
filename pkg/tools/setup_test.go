package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/maestro/pkg/config"
)

func TestBuildRegistersConfiguredTools(t *testing.T) {
	cfg := &config.Config{}
	cfg.Tools.FileTool = *testEndpoint("http://files.invalid")
	cfg.Tools.CodeInterpreter = *testEndpoint("http://code.invalid")
	cfg.Tools.Personas = map[string]string{"code_interpreter": "Coder"}

	c, closer, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closer()) }()

	assert.ElementsMatch(t, []string{"file", "code_interpreter", "planning"}, c.Names())
	assert.Equal(t, "Coder", c.Persona("code_interpreter"))
	assert.Empty(t, c.Persona("file"))
}

func TestBuildPlanningOnlyByDefault(t *testing.T) {
	c, closer, err := Build(context.Background(), &config.Config{})
	require.NoError(t, err)
	defer func() { assert.NoError(t, closer()) }()

	assert.Equal(t, []string{"planning"}, c.Names())
}

func TestBuildDiscoversHTTPServers(t *testing.T) {
	srv := mcpServer(t, nil)

	cfg := &config.Config{}
	cfg.MCP.Servers = []*config.MCPServerConfig{{
		Name:      "metoffice",
		Transport: config.MCPTransportHTTP,
		URL:       srv.URL,
	}}

	c, closer, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closer()) }()

	tool, ok := c.Get("weather")
	require.True(t, ok)
	assert.Equal(t, "Current weather for a city", tool.Description())
	assert.ElementsMatch(t, []string{"planning", "weather"}, c.Names())
}

func TestBuildFailsWhenDiscoveryFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.MCP.Servers = []*config.MCPServerConfig{{
		Name:      "down",
		Transport: config.MCPTransportHTTP,
		URL:       srv.URL,
	}}

	_, _, err := Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}
