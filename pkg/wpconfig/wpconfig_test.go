package wpconfig_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pressops/wpdeploy/pkg/credentials"
	"github.com/pressops/wpdeploy/pkg/deployerr"
	"github.com/pressops/wpdeploy/pkg/wpconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saltResponse() string {
	lines := make([]string, 0, len(wpconfig.SaltKeys))
	for i, key := range wpconfig.SaltKeys {
		lines = append(lines, fmt.Sprintf("define('%s', %s'salt-%d-%s');", key, strings.Repeat(" ", len("SECURE_AUTH_SALT")-len(key)), i, key))
	}
	return strings.Join(lines, "\n") + "\n"
}

func testSalts() wpconfig.Salts {
	salts := wpconfig.Salts{}
	for _, key := range wpconfig.SaltKeys {
		salts[key] = "salt-" + key
	}
	return salts
}

func TestRender(t *testing.T) {
	output, err := wpconfig.Render(wpconfig.Config{
		DatabaseName:     "acme_shop",
		DatabaseUser:     "acme_shop",
		DatabasePassword: "Ab1!x'y\\z-0123456",
		TablePrefix:      "k3xq9z",
		Salts:            testSalts(),
	})
	require.NoError(t, err)

	config := string(output)
	assert.True(t, strings.HasPrefix(config, "<?php\n"))
	assert.Contains(t, config, "define( 'DB_NAME', 'acme_shop' );")
	assert.Contains(t, config, `define( 'DB_PASSWORD', 'Ab1!x\'y\\z-0123456' );`)
	assert.Contains(t, config, "define( 'DB_HOST', 'localhost' );")
	assert.Contains(t, config, "define( 'DB_CHARSET', 'utf8mb4' );")
	assert.Contains(t, config, "$table_prefix = 'k3xq9z_';")
	assert.Contains(t, config, "define( 'DISALLOW_FILE_EDIT', true );")
	for _, key := range wpconfig.SaltKeys {
		assert.Contains(t, config, fmt.Sprintf("define( '%s', 'salt-%s' );", key, key))
	}
	assert.NotContains(t, config, "&#x27;", "values must not be HTML-escaped")
}

func TestRenderRequiresEveryValue(t *testing.T) {
	salts := testSalts()
	delete(salts, "NONCE_SALT")

	_, err := wpconfig.Render(wpconfig.Config{
		DatabaseName:     "acme_shop",
		DatabaseUser:     "acme_shop",
		DatabasePassword: "secret-password-1",
		TablePrefix:      "k3xq9z",
		Salts:            salts,
	})
	assert.True(t, deployerr.Is(err, deployerr.KindInvalidInput))
	assert.NotContains(t, err.Error(), "secret-password-1")
}

func TestFetchSalts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, saltResponse())
	}))
	defer server.Close()

	salts, err := wpconfig.FetchSalts(context.Background(), server.Client(), server.URL)
	require.NoError(t, err)
	assert.Len(t, salts, len(wpconfig.SaltKeys))
	assert.Equal(t, "salt-0-AUTH_KEY", salts["AUTH_KEY"])
	assert.Equal(t, "salt-7-NONCE_SALT", salts["NONCE_SALT"])
}

func TestFetchSaltsFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := wpconfig.FetchSalts(context.Background(), server.Client(), server.URL)
		assert.True(t, deployerr.Is(err, deployerr.KindRemote))
	})

	t.Run("incomplete response", func(t *testing.T) {
		_, err := wpconfig.ParseSalts("define('AUTH_KEY', 'x');")
		assert.EqualError(t, err, "fetch salts: response lacks SECURE_AUTH_KEY")
	})
}

func TestGenerateSalts(t *testing.T) {
	salts, err := wpconfig.GenerateSalts(credentials.New())
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, key := range wpconfig.SaltKeys {
		assert.Len(t, salts[key], wpconfig.SaltLength)
		assert.False(t, seen[salts[key]], "salts must be independent")
		seen[salts[key]] = true
	}
}
