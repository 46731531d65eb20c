package endpoints_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/jonesrussell/seo-pinger/cmd/common"
	"github.com/jonesrussell/seo-pinger/cmd/endpoints"
	"github.com/jonesrussell/seo-pinger/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := endpoints.Command(&common.GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "absent.yml")})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEndpoints_AddListRemove(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.yml")
	t.Setenv("CATALOG_CUSTOM_FILE", custom)

	out, err := execute(t, "add", "--name", "My Hub", "--url-template", "https://hub.example/ping?url={URL}")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Added My Hub")

	out, err = execute(t)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Built-in ping services:")
	assert.Contains(t, out, "Ping-O-Matic")
	assert.Contains(t, out, "My Hub")
	assert.Contains(t, out, "Google Search Console")

	out, err = execute(t, "add", "--name", "my hub", "--url-template", "https://other.example/{URL}")
	require.ErrorIs(t, err, catalog.ErrDuplicate, out)

	out, err = execute(t, "remove", "MY HUB")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Removed MY HUB")

	_, err = execute(t, "remove", "My Hub")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestEndpoints_AddRejectsTemplateWithoutPlaceholder(t *testing.T) {
	t.Setenv("CATALOG_CUSTOM_FILE", filepath.Join(t.TempDir(), "custom.yml"))

	_, err := execute(t, "add", "--name", "Broken", "--url-template", "https://hub.example/ping")
	require.ErrorIs(t, err, catalog.ErrInvalidEndpoint)
}

func TestEndpoints_SuggestCatalogStrategy(t *testing.T) {
	t.Setenv("CATALOG_CUSTOM_FILE", filepath.Join(t.TempDir(), "custom.yml"))
	t.Setenv("RESOLVER_STRATEGY", "catalog")
	t.Setenv("SUGGEST_PROVIDER", "none")

	out, err := execute(t, "--suggest", "https://example.com/sitemap.xml")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Endpoints for https://example.com/sitemap.xml (strategy catalog):")
	assert.Contains(t, out, "Yandex")
}

func TestEndpoints_SuggestRejectsInvalidURL(t *testing.T) {
	t.Setenv("CATALOG_CUSTOM_FILE", filepath.Join(t.TempDir(), "custom.yml"))

	_, err := execute(t, "--suggest", "not a url")
	require.Error(t, err)
}
