package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonesrussell/seo-pinger/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "seo-pinger version dev\n", out)
}

func TestToken(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	config := filepath.Join(t.TempDir(), "absent.yml")

	out, err := execute(t, "token", "--config", config, "--subject", "ci", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := jwt.Parse([]byte("s3cret"), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ci", claims.Sub)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestToken_RequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	config := filepath.Join(t.TempDir(), "absent.yml")

	_, err := execute(t, "token", "--config", config)
	require.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"submit", "endpoints", "serve", "version", "token"})
}
