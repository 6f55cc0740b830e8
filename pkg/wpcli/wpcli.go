// Package wpcli drives WordPress through WP-CLI commands run in the hosting account's shell.
package wpcli

import (
	"context"
	"fmt"
	"strings"

	"github.com/pressops/wpdeploy/pkg/deployerr"
	"github.com/pressops/wpdeploy/pkg/uapi"
)

const (
	DefaultBinary = "wp"
	DefaultLocale = "en_US"
)

// Runner executes a shell command remotely and returns its combined output.
type Runner interface {
	Exec(ctx context.Context, command string) (string, error)
}

type Client struct {
	Runner Runner
	Binary string
}

type CoreInstall struct {
	URL           string
	Title         string
	AdminUser     string
	AdminPassword string
	AdminEmail    string
	TablePrefix   string
}

func New(runner Runner) *Client {
	return &Client{
		Runner: runner,
		Binary: DefaultBinary,
	}
}

func (c *Client) DownloadCore(ctx context.Context, path, locale string) error {
	if locale == "" {
		locale = DefaultLocale
	}
	_, err := c.run(ctx, "wp core download", path, "core", "download", flag("locale", locale))
	return err
}

// TablePrefix returns the prefix configured in the site's wp-config.php.
func (c *Client) TablePrefix(ctx context.Context, path string) (string, error) {
	output, err := c.run(ctx, "wp config get", path, "config", "get", "table_prefix")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// InstallCore installs WordPress into a site whose wp-config.php is already in place.
// The configured table prefix must match the generated one before anything is written to the database.
func (c *Client) InstallCore(ctx context.Context, path string, install CoreInstall) error {
	configured, err := c.TablePrefix(ctx, path)
	if err != nil {
		return err
	}
	if configured != install.TablePrefix+"_" {
		return deployerr.Errorf(deployerr.KindRemote, "wp core install", "wp-config.php declares table prefix '%s', expected '%s_'", configured, install.TablePrefix)
	}

	_, err = c.run(ctx, "wp core install", path, "core", "install",
		flag("url", install.URL),
		flag("title", install.Title),
		flag("admin_user", install.AdminUser),
		flag("admin_password", install.AdminPassword),
		flag("admin_email", install.AdminEmail),
		"--skip-email",
	)
	return err
}

// InstallPlugin installs and activates a plugin from the directory slug, a URL or a remote zip path.
func (c *Client) InstallPlugin(ctx context.Context, path, plugin string) error {
	_, err := c.run(ctx, "wp plugin install "+plugin, path, "plugin", "install", uapi.Quote(plugin), "--activate", "--force")
	return err
}

func (c *Client) InstallTheme(ctx context.Context, path, theme string) error {
	_, err := c.run(ctx, "wp theme install "+theme, path, "theme", "install", uapi.Quote(theme), "--activate")
	return err
}

func (c *Client) ActivateElementorLicense(ctx context.Context, path, key string) error {
	if key == "" {
		return deployerr.New(deployerr.KindInvalidInput, "wp elementor-pro license activate", "license key is empty")
	}
	_, err := c.run(ctx, "wp elementor-pro license activate", path, "elementor-pro", "license", "activate", uapi.Quote(key))
	return err
}

// ImportKit imports an Elementor template kit from a remote zip path or URL.
func (c *Client) ImportKit(ctx context.Context, path, source string) error {
	_, err := c.run(ctx, "wp elementor kit import", path, "elementor", "kit", "import", uapi.Quote(source))
	return err
}

func (c *Client) AdministratorLogins(ctx context.Context, path string) ([]string, error) {
	output, err := c.run(ctx, "wp user list", path, "user", "list", "--role=administrator", "--field=user_login")
	if err != nil {
		return nil, err
	}
	logins := make([]string, 0)
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			logins = append(logins, line)
		}
	}
	return logins, nil
}

func (c *Client) run(ctx context.Context, op, path string, args ...string) (string, error) {
	if path == "" {
		return "", deployerr.New(deployerr.KindInvalidInput, op, "site path is empty")
	}
	binary := c.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	command := fmt.Sprintf("%s %s --path=%s --no-color", binary, strings.Join(args, " "), uapi.Quote(path))
	output, err := c.Runner.Exec(ctx, command)
	if err != nil {
		return output, deployerr.Wrap(deployerr.KindOf(err), op, err)
	}
	return output, nil
}

func flag(name, value string) string {
	return fmt.Sprintf("--%s=%s", name, uapi.Quote(value))
}
