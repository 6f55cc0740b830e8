// Package wpconfig renders wp-config.php for a freshly provisioned site.
package wpconfig

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/pressops/wpdeploy/pkg/credentials"
	"github.com/pressops/wpdeploy/pkg/deployerr"
)

const (
	FileName       = "wp-config.php"
	DefaultHost    = "localhost"
	DefaultSaltURL = "https://api.wordpress.org/secret-key/1.1/salt/"
	SaltLength     = 64
)

// SaltKeys lists the authentication keys and salts in the order WordPress documents them.
var SaltKeys = []string{
	"AUTH_KEY",
	"SECURE_AUTH_KEY",
	"LOGGED_IN_KEY",
	"NONCE_KEY",
	"AUTH_SALT",
	"SECURE_AUTH_SALT",
	"LOGGED_IN_SALT",
	"NONCE_SALT",
}

type Salts map[string]string

type Config struct {
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseHost     string
	TablePrefix      string
	Salts            Salts
}

const configTemplate = `<?php
/**
 * WordPress configuration, generated by wpdeploy.
 */

define( 'DB_NAME', '{{{db_name}}}' );
define( 'DB_USER', '{{{db_user}}}' );
define( 'DB_PASSWORD', '{{{db_password}}}' );
define( 'DB_HOST', '{{{db_host}}}' );
define( 'DB_CHARSET', 'utf8mb4' );
define( 'DB_COLLATE', '' );

{{#each salts}}
define( '{{{key}}}', '{{{value}}}' );
{{/each}}

$table_prefix = '{{{table_prefix}}}_';

define( 'WP_DEBUG', false );
define( 'DISALLOW_FILE_EDIT', true );

if ( ! defined( 'ABSPATH' ) ) {
	define( 'ABSPATH', __DIR__ . '/' );
}

require_once ABSPATH . 'wp-settings.php';
`

var template = raymond.MustParse(configTemplate)

var saltLine = regexp.MustCompile(`define\(\s*'([A-Z_]+)',\s*'(.*)'\s*\);`)

func (c Config) validate() error {
	missing := make([]string, 0)
	for name, value := range map[string]string{
		"database name":     c.DatabaseName,
		"database user":     c.DatabaseUser,
		"database password": c.DatabasePassword,
		"table prefix":      c.TablePrefix,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	for _, key := range SaltKeys {
		if c.Salts[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return deployerr.Errorf(deployerr.KindInvalidInput, "render "+FileName, "missing %d value(s)", len(missing))
	}
	return nil
}

// Render produces the contents of wp-config.php.
func Render(cfg Config) ([]byte, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	host := cfg.DatabaseHost
	if host == "" {
		host = DefaultHost
	}

	type salt struct {
		Key   string `handlebars:"key"`
		Value string `handlebars:"value"`
	}
	salts := make([]salt, 0, len(SaltKeys))
	for _, key := range SaltKeys {
		salts = append(salts, salt{Key: key, Value: quote(cfg.Salts[key])})
	}

	output, err := template.Exec(map[string]interface{}{
		"db_name":      quote(cfg.DatabaseName),
		"db_user":      quote(cfg.DatabaseUser),
		"db_password":  quote(cfg.DatabasePassword),
		"db_host":      quote(host),
		"table_prefix": quote(cfg.TablePrefix),
		"salts":        salts,
	})
	if err != nil {
		return nil, deployerr.Errorf(deployerr.KindInternal, "render "+FileName, "execute template: %s", err)
	}

	return []byte(output), nil
}

// FetchSalts retrieves a fresh set of keys and salts from the WordPress secret-key service.
func FetchSalts(ctx context.Context, client *http.Client, url string) (Salts, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, deployerr.Wrap(deployerr.KindInvalidInput, "fetch salts", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, deployerr.Wrap(deployerr.KindTransientNetwork, "fetch salts", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, deployerr.Errorf(deployerr.KindRemote, "fetch salts", "unexpected HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, deployerr.Wrap(deployerr.KindTransientNetwork, "fetch salts", err)
	}

	return ParseSalts(string(body))
}

// ParseSalts extracts keys and salts from define() statements.
func ParseSalts(body string) (Salts, error) {
	salts := Salts{}
	for _, match := range saltLine.FindAllStringSubmatch(body, -1) {
		salts[match[1]] = match[2]
	}
	for _, key := range SaltKeys {
		if salts[key] == "" {
			return nil, deployerr.Errorf(deployerr.KindRemote, "fetch salts", "response lacks %s", key)
		}
	}
	return salts, nil
}

// GenerateSalts creates every key and salt locally.
func GenerateSalts(generator *credentials.Generator) (Salts, error) {
	salts := Salts{}
	for _, key := range SaltKeys {
		value, err := generator.Salt(SaltLength)
		if err != nil {
			return nil, err
		}
		salts[key] = value
	}
	return salts, nil
}

// quote escapes s for a single-quoted PHP string literal.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func (s Salts) String() string {
	return fmt.Sprintf("%d salts", len(s))
}
