package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/pressops/wpdeploy/pkg/credentials"
	"github.com/pressops/wpdeploy/pkg/deployerr"
	"github.com/pressops/wpdeploy/pkg/uapi"
	"github.com/pressops/wpdeploy/pkg/wpcli"
	"github.com/pressops/wpdeploy/pkg/wpconfig"
)

const (
	uploadElementorPro = "elementor-pro"
	uploadKit          = "kit"

	// Remote file names in the staging directory, one per upload.
	elementorProFile = "elementor-pro.zip"
	kitFile          = "elementor-kit.zip"

	dirMode     = 0o755
	fileMode    = 0o644
	configMode  = 0o600
	stagingMode = 0o700
)

var guessableLogins = []string{"admin", "administrator", "root", "wordpress", "user", "test", "demo"}

func (o *Orchestrator) initialize(ctx context.Context, r *run) error {
	return o.step(ctx, r, Initializing, "validate request", mandatory, func(ctx context.Context) error {
		if err := r.request.Validate(); err != nil {
			return err
		}

		databaseName := r.request.DatabaseName
		if databaseName == "" {
			databaseName = r.request.BaseName()
		}
		databaseUser := r.request.DatabaseUser
		if databaseUser == "" {
			databaseUser = r.request.BaseName()
		}

		r.databaseName = o.Hosting.DatabaseName(databaseName)
		r.databaseUser = o.Hosting.DatabaseUserName(databaseUser)
		r.stagingDir = stagingDir(r.request, r.id)
		return nil
	})
}

func (o *Orchestrator) prepareCredentials(ctx context.Context, r *run) error {
	return o.step(ctx, r, CredentialsReady, "generate credentials", mandatory, func(ctx context.Context) error {
		creds, err := o.generator().Generate(r.request.DatabasePassword, r.request.AdminPassword)
		if err != nil {
			return err
		}
		r.redactor.Add(creds.DatabasePassword, creds.AdminPassword)
		r.credentials = creds
		return nil
	})
}

func (o *Orchestrator) provisionDatabase(ctx context.Context, r *run) error {
	err := o.step(ctx, r, DatabaseProvisioned, "create database "+r.databaseName, mandatory, func(ctx context.Context) error {
		return o.Hosting.CreateDatabase(ctx, r.databaseName)
	})
	if err != nil {
		return err
	}

	err = o.step(ctx, r, DatabaseProvisioned, "create database user "+r.databaseUser, mandatory, func(ctx context.Context) error {
		return o.Hosting.CreateDatabaseUser(ctx, r.databaseUser, r.credentials.DatabasePassword)
	})
	if err != nil {
		return err
	}

	return o.step(ctx, r, DatabaseProvisioned, fmt.Sprintf("grant %s privileges on %s", r.databaseUser, r.databaseName), mandatory, func(ctx context.Context) error {
		return o.Hosting.GrantPrivileges(ctx, r.databaseUser, r.databaseName, uapi.SitePrivileges)
	})
}

func (o *Orchestrator) prepareFilesystem(ctx context.Context, r *run) error {
	err := o.step(ctx, r, FilesystemPrepared, "create site directory "+r.request.Path, mandatory, func(ctx context.Context) error {
		return o.Hosting.MakeDirectory(ctx, r.request.Path, dirMode)
	})
	if err != nil {
		return err
	}

	return o.step(ctx, r, FilesystemPrepared, "create staging directory "+r.stagingDir, mandatory, func(ctx context.Context) error {
		return o.Hosting.MakeDirectory(ctx, r.stagingDir, stagingMode)
	})
}

func (o *Orchestrator) uploadArchives(ctx context.Context, r *run) error {
	err := o.step(ctx, r, ArchivesUploaded, "upload Elementor Pro archive", mandatory, func(ctx context.Context) error {
		upload, err := o.Transfer.Upload(ctx, r.request.ElementorProArchive, r.stagingDir, elementorProFile)
		if err != nil {
			return err
		}
		r.uploads[uploadElementorPro] = upload
		return nil
	})
	if err != nil {
		return err
	}

	if r.request.KitArchive == "" {
		return nil
	}

	return o.step(ctx, r, ArchivesUploaded, "upload template kit archive", bestEffort, func(ctx context.Context) error {
		upload, err := o.Transfer.Upload(ctx, r.request.KitArchive, r.stagingDir, kitFile)
		if err != nil {
			return err
		}
		r.uploads[uploadKit] = upload
		return nil
	})
}

func (o *Orchestrator) installCore(ctx context.Context, r *run) error {
	err := o.step(ctx, r, CoreInstalled, "download WordPress core", mandatory, func(ctx context.Context) error {
		return o.Sites.DownloadCore(ctx, r.request.Path, r.request.Locale)
	})
	if err != nil {
		return err
	}

	err = o.step(ctx, r, CoreInstalled, "write "+wpconfig.FileName, mandatory, func(ctx context.Context) error {
		salts, err := o.salts(ctx, r)
		if err != nil {
			return err
		}
		content, err := wpconfig.Render(wpconfig.Config{
			DatabaseName:     r.databaseName,
			DatabaseUser:     r.databaseUser,
			DatabasePassword: r.credentials.DatabasePassword,
			DatabaseHost:     r.request.DatabaseHost,
			TablePrefix:      r.credentials.TablePrefix,
			Salts:            salts,
		})
		if err != nil {
			return err
		}
		_, err = o.Transfer.UploadContent(ctx, wpconfig.FileName, content, r.request.Path)
		return err
	})
	if err != nil {
		return err
	}

	return o.step(ctx, r, CoreInstalled, "install WordPress core", mandatory, func(ctx context.Context) error {
		return o.Sites.InstallCore(ctx, r.request.Path, wpcli.CoreInstall{
			URL:           r.request.SiteURL(),
			Title:         r.request.SiteTitle,
			AdminUser:     r.request.AdminUser,
			AdminPassword: r.credentials.AdminPassword,
			AdminEmail:    r.request.AdminEmail,
			TablePrefix:   r.credentials.TablePrefix,
		})
	})
}

func (o *Orchestrator) configurePlugins(ctx context.Context, r *run) error {
	err := o.step(ctx, r, PluginsConfigured, "install plugin "+PluginElementor, bestEffort, func(ctx context.Context) error {
		return o.Sites.InstallPlugin(ctx, r.request.Path, PluginElementor)
	})
	if err != nil {
		return err
	}

	err = o.step(ctx, r, PluginsConfigured, "install plugin "+PluginElementorPro, bestEffort, func(ctx context.Context) error {
		if err := o.Sites.InstallPlugin(ctx, r.request.Path, r.uploads[uploadElementorPro].RemotePath); err != nil {
			return err
		}
		r.proInstalled = true
		return nil
	})
	if err != nil {
		return err
	}

	for _, plugin := range r.request.AdditionalPlugins() {
		err = o.step(ctx, r, PluginsConfigured, "install plugin "+plugin, bestEffort, func(ctx context.Context) error {
			return o.Sites.InstallPlugin(ctx, r.request.Path, plugin)
		})
		if err != nil {
			return err
		}
	}

	if r.request.Theme == "" {
		return nil
	}

	return o.step(ctx, r, PluginsConfigured, "install theme "+r.request.Theme, bestEffort, func(ctx context.Context) error {
		return o.Sites.InstallTheme(ctx, r.request.Path, r.request.Theme)
	})
}

func (o *Orchestrator) activateLicense(ctx context.Context, r *run) error {
	const activate = "activate Elementor Pro license"
	const importKit = "import template kit"

	if r.proInstalled {
		err := o.step(ctx, r, LicenseActivated, activate, bestEffort, func(ctx context.Context) error {
			return o.Sites.ActivateElementorLicense(ctx, r.request.Path, r.request.ElementorProKey)
		})
		if err != nil {
			return err
		}
	} else {
		o.skip(r, LicenseActivated, activate, "Elementor Pro plugin is not installed")
	}

	var source string
	switch kit, uploaded := r.uploads[uploadKit]; {
	case uploaded:
		source = kit.RemotePath
	case r.request.KitArchive != "":
		o.skip(r, LicenseActivated, importKit, "template kit archive was not uploaded")
		return nil
	case r.request.KitURL != "":
		source = r.request.KitURL
	default:
		o.skip(r, LicenseActivated, importKit, "no template kit requested")
		return nil
	}

	return o.step(ctx, r, LicenseActivated, importKit, bestEffort, func(ctx context.Context) error {
		return o.Sites.ImportKit(ctx, r.request.Path, source)
	})
}

func (o *Orchestrator) finalize(ctx context.Context, r *run) error {
	err := o.step(ctx, r, Finalized, "apply file permissions", bestEffort, func(ctx context.Context) error {
		if err := o.Hosting.SetPermissions(ctx, r.request.Path, dirMode, fileMode); err != nil {
			return err
		}
		return o.Hosting.Chmod(ctx, path.Join(r.request.Path, wpconfig.FileName), configMode)
	})
	if err != nil {
		return err
	}

	err = o.step(ctx, r, Finalized, "remove staging directory", bestEffort, func(ctx context.Context) error {
		return o.Hosting.RemovePath(ctx, r.stagingDir)
	})
	if err != nil {
		return err
	}

	err = o.step(ctx, r, Finalized, "check administrator logins", bestEffort, func(ctx context.Context) error {
		logins, err := o.Sites.AdministratorLogins(ctx, r.request.Path)
		if err != nil {
			return err
		}
		if weak := guessable(logins, r.request.Domain); len(weak) > 0 {
			return deployerr.Errorf(deployerr.KindBestEffort, "hardening", "guessable administrator login(s): %s", strings.Join(weak, ", "))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if r.request.DatabasePassword == "" && r.request.AdminPassword == "" {
		return nil
	}

	return o.step(ctx, r, Finalized, "check supplied passwords", bestEffort, func(ctx context.Context) error {
		findings := make([]string, 0, 2)
		if r.request.DatabasePassword != "" {
			if err := credentials.CheckPassword(r.request.DatabasePassword); err != nil {
				findings = append(findings, "db_password "+err.Error())
			}
		}
		if r.request.AdminPassword != "" {
			if err := credentials.CheckPassword(r.request.AdminPassword); err != nil {
				findings = append(findings, "admin_password "+err.Error())
			}
		}
		if len(findings) > 0 {
			return deployerr.New(deployerr.KindBestEffort, "hardening", strings.Join(findings, "; "))
		}
		return nil
	})
}

func (o *Orchestrator) salts(ctx context.Context, r *run) (wpconfig.Salts, error) {
	if o.Salts != nil {
		salts, err := o.Salts(ctx)
		if err == nil {
			return salts, nil
		}
		if ctx.Err() != nil {
			return nil, deployerr.Wrap(deployerr.KindCancelled, "fetch salts", ctx.Err())
		}
		r.log.Warnf("Generating salts locally: %s", err)
	}
	return wpconfig.GenerateSalts(o.generator())
}

func (o *Orchestrator) generator() *credentials.Generator {
	if o.Credentials == nil {
		return credentials.New()
	}
	return o.Credentials
}

// guessable returns the logins an attacker would try first.
func guessable(logins []string, domain string) []string {
	candidates := make(map[string]bool, len(guessableLogins)+1)
	for _, login := range guessableLogins {
		candidates[login] = true
	}
	if label, _, _ := strings.Cut(strings.ToLower(domain), "."); label != "" {
		candidates[label] = true
	}

	weak := make([]string, 0)
	for _, login := range logins {
		if candidates[strings.ToLower(login)] {
			weak = append(weak, login)
		}
	}
	return weak
}
