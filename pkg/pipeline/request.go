package pipeline

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
	"github.com/pressops/wpdeploy/pkg/deployerr"
	"github.com/pressops/wpdeploy/pkg/logging"
)

const (
	PluginElementor    = "elementor"
	PluginElementorPro = "elementor-pro"
)

// Plugins installed on every site before anything the caller asks for.
var Bundle = []string{PluginElementor, PluginElementorPro}

var (
	hostnamePattern = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	slugPattern     = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// Request describes one site to deploy. It is consumed by a single Deploy call.
type Request struct {
	Domain              string   `json:"domain"`
	Path                string   `json:"path"`
	DatabaseName        string   `json:"db_name,omitempty"`
	DatabaseUser        string   `json:"db_user,omitempty"`
	DatabasePassword    string   `json:"db_password,omitempty"`
	DatabaseHost        string   `json:"db_host,omitempty"`
	SiteTitle           string   `json:"site_title"`
	AdminUser           string   `json:"admin_user"`
	AdminPassword       string   `json:"admin_password,omitempty"`
	AdminEmail          string   `json:"admin_email"`
	ElementorProKey     string   `json:"elementor_pro_key"`
	ElementorProArchive string   `json:"elementor_pro_archive"`
	KitArchive          string   `json:"kit_archive,omitempty"`
	KitURL              string   `json:"kit_url,omitempty"`
	Plugins             []string `json:"plugins,omitempty"`
	Theme               string   `json:"theme,omitempty"`
	Locale              string   `json:"locale,omitempty"`
	StagingDir          string   `json:"staging_dir,omitempty"`
}

// Validate checks the request without touching anything remote.
func (r Request) Validate() error {
	problems := make([]string, 0)
	problem := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch {
	case r.Domain == "":
		problem("domain is required")
	case !hostnamePattern.MatchString(r.Domain):
		problem("domain '%s' is not a valid host name", r.Domain)
	}

	switch {
	case r.Path == "":
		problem("path is required")
	case !path.IsAbs(r.Path):
		problem("path '%s' is not absolute", r.Path)
	case path.Clean(r.Path) == "/":
		problem("path must not be the filesystem root")
	}

	if r.StagingDir != "" && !path.IsAbs(r.StagingDir) {
		problem("staging directory '%s' is not absolute", r.StagingDir)
	}

	for _, required := range []struct{ field, value string }{
		{"site_title", r.SiteTitle},
		{"admin_user", r.AdminUser},
		{"elementor_pro_key", r.ElementorProKey},
		{"elementor_pro_archive", r.ElementorProArchive},
	} {
		if strings.TrimSpace(required.value) == "" {
			problem("%s is required", required.field)
		}
	}

	for _, secret := range []struct{ field, value string }{
		{"db_password", r.DatabasePassword},
		{"admin_password", r.AdminPassword},
		{"elementor_pro_key", r.ElementorProKey},
	} {
		if secret.value != "" && len(secret.value) < logging.MinSecretLength {
			problem("%s must be at least %d characters", secret.field, logging.MinSecretLength)
		}
	}

	switch {
	case r.AdminEmail == "":
		problem("admin_email is required")
	case !emailPattern.MatchString(r.AdminEmail):
		problem("admin_email '%s' is not an email address", r.AdminEmail)
	}

	if r.KitArchive != "" && r.KitURL != "" {
		problem("kit_archive and kit_url are mutually exclusive")
	}
	if r.KitURL != "" && !httpsURL(r.KitURL) {
		problem("kit_url must be an https URL")
	}

	for _, plugin := range r.Plugins {
		if !validIdentifier(plugin) {
			problem("plugin '%s' is neither a plugin slug nor an https URL", plugin)
		}
	}
	if r.Theme != "" && !validIdentifier(r.Theme) {
		problem("theme '%s' is neither a theme slug nor an https URL", r.Theme)
	}

	if len(problems) > 0 {
		return deployerr.New(deployerr.KindInvalidInput, "validate request", strings.Join(problems, "; "))
	}
	return nil
}

// AdditionalPlugins returns the requested plugins without duplicates or bundle members, in request order.
func (r Request) AdditionalPlugins() []string {
	seen := make(map[string]bool)
	for _, plugin := range Bundle {
		seen[plugin] = true
	}
	plugins := make([]string, 0, len(r.Plugins))
	for _, plugin := range r.Plugins {
		plugin = strings.TrimSpace(plugin)
		if plugin == "" || seen[plugin] {
			continue
		}
		seen[plugin] = true
		plugins = append(plugins, plugin)
	}
	return plugins
}

// BaseName derives default database and user names from the domain.
func (r Request) BaseName() string {
	return strings.ReplaceAll(slug.Make(r.Domain), "-", "_")
}

func (r Request) SiteURL() string {
	return "https://" + r.Domain
}

func (r Request) AdminURL() string {
	return r.SiteURL() + "/wp-admin/"
}

// Secrets returns every sensitive value the caller supplied.
func (r Request) Secrets() []string {
	return []string{r.DatabasePassword, r.AdminPassword, r.ElementorProKey}
}

func validIdentifier(s string) bool {
	return slugPattern.MatchString(s) || httpsURL(s)
}

func httpsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme == "https" && u.Host != ""
}
