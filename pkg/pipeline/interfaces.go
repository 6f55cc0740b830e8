package pipeline

import (
	"context"

	"github.com/pressops/wpdeploy/pkg/transfer"
	"github.com/pressops/wpdeploy/pkg/wpcli"
	"github.com/pressops/wpdeploy/pkg/wpconfig"
)

// Hosting is the subset of the control-panel API the pipeline relies on.
type Hosting interface {
	DatabaseName(name string) string
	DatabaseUserName(name string) string
	CreateDatabase(ctx context.Context, name string) error
	CreateDatabaseUser(ctx context.Context, name, password string) error
	GrantPrivileges(ctx context.Context, user, database string, privileges []string) error
	MakeDirectory(ctx context.Context, path string, mode uint32) error
	SetPermissions(ctx context.Context, root string, dirMode, fileMode uint32) error
	Chmod(ctx context.Context, path string, mode uint32) error
	RemovePath(ctx context.Context, path string) error
}

// SiteManager drives WordPress itself.
type SiteManager interface {
	DownloadCore(ctx context.Context, path, locale string) error
	InstallCore(ctx context.Context, path string, install wpcli.CoreInstall) error
	InstallPlugin(ctx context.Context, path, plugin string) error
	InstallTheme(ctx context.Context, path, theme string) error
	ActivateElementorLicense(ctx context.Context, path, key string) error
	ImportKit(ctx context.Context, path, source string) error
	AdministratorLogins(ctx context.Context, path string) ([]string, error)
}

type Transfer interface {
	Upload(ctx context.Context, localPath, remoteDir, name string) (*transfer.Upload, error)
	UploadContent(ctx context.Context, name string, content []byte, remoteDir string) (*transfer.Upload, error)
}

// SaltSource supplies wp-config.php keys and salts.
type SaltSource func(ctx context.Context) (wpconfig.Salts, error)
