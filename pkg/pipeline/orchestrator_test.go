package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"
	"testing"

	"github.com/pressops/wpdeploy/pkg/credentials"
	"github.com/pressops/wpdeploy/pkg/deployerr"
	"github.com/pressops/wpdeploy/pkg/logging"
	"github.com/pressops/wpdeploy/pkg/metrics"
	"github.com/pressops/wpdeploy/pkg/pipeline"
	"github.com/pressops/wpdeploy/pkg/transfer"
	"github.com/pressops/wpdeploy/pkg/uapi"
	"github.com/pressops/wpdeploy/pkg/wpcli"
	"github.com/pressops/wpdeploy/pkg/wpconfig"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	sitePath    = "/home/acme/public_html/shop"
	stagingBase = "/home/acme/public_html/.wpdeploy/"
	licenseKey  = "EP-LICENSE-0123456789abcdef"
)

type fixture struct {
	hosting  *pipeline.MockHosting
	sites    *pipeline.MockSiteManager
	transfer *pipeline.MockTransfer
	logs     *bytes.Buffer
	redactor *logging.Redactor
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		hosting:  pipeline.NewMockHosting(t),
		sites:    pipeline.NewMockSiteManager(t),
		transfer: pipeline.NewMockTransfer(t),
		logs:     &bytes.Buffer{},
		redactor: logging.NewRedactor(),
		metrics:  metrics.New(),
	}
}

func (f *fixture) orchestrator() *pipeline.Orchestrator {
	logger := log.New()
	logger.SetOutput(f.logs)
	logger.SetLevel(log.DebugLevel)
	logger.SetFormatter(&log.JSONFormatter{})
	logger.AddHook(f.redactor)

	return &pipeline.Orchestrator{
		Hosting:  f.hosting,
		Sites:    f.sites,
		Transfer: f.transfer,
		Redactor: f.redactor,
		Metrics:  f.metrics,
		Log:      log.NewEntry(logger),
	}
}

// defaults lets every collaborator succeed. Register specific expectations before calling it.
func (f *fixture) defaults() {
	any2 := []interface{}{mock.Anything, mock.Anything}
	any3 := append(any2, mock.Anything)
	any4 := append(any3, mock.Anything)

	f.hosting.On("DatabaseName", mock.Anything).Return(func(name string) string { return uapi.Qualify("acme", name, 64) }).Maybe()
	f.hosting.On("DatabaseUserName", mock.Anything).Return(func(name string) string { return uapi.Qualify("acme", name, 32) }).Maybe()
	f.hosting.On("CreateDatabase", any2...).Return(nil).Maybe()
	f.hosting.On("CreateDatabaseUser", any3...).Return(nil).Maybe()
	f.hosting.On("GrantPrivileges", any4...).Return(nil).Maybe()
	f.hosting.On("MakeDirectory", any3...).Return(nil).Maybe()
	f.hosting.On("SetPermissions", any4...).Return(nil).Maybe()
	f.hosting.On("Chmod", any3...).Return(nil).Maybe()
	f.hosting.On("RemovePath", any2...).Return(nil).Maybe()

	f.sites.On("DownloadCore", any3...).Return(nil).Maybe()
	f.sites.On("InstallCore", any3...).Return(nil).Maybe()
	f.sites.On("InstallPlugin", any3...).Return(nil).Maybe()
	f.sites.On("InstallTheme", any3...).Return(nil).Maybe()
	f.sites.On("ActivateElementorLicense", any3...).Return(nil).Maybe()
	f.sites.On("ImportKit", any3...).Return(nil).Maybe()
	f.sites.On("AdministratorLogins", any2...).Return([]string{"shopkeeper"}, nil).Maybe()

	f.transfer.On("Upload", any4...).Return(func(ctx context.Context, local, dir, name string) (*transfer.Upload, error) {
		return &transfer.Upload{RemotePath: path.Join(dir, name), Attempts: 1}, nil
	}).Maybe()
	f.transfer.On("UploadContent", any4...).Return(&transfer.Upload{RemotePath: path.Join(sitePath, wpconfig.FileName), Attempts: 1}, nil).Maybe()
}

func validRequest() pipeline.Request {
	return pipeline.Request{
		Domain:              "shop.example.com",
		Path:                sitePath,
		SiteTitle:           "Example Shop",
		AdminUser:           "shopkeeper",
		AdminEmail:          "owner@example.com",
		ElementorProKey:     licenseKey,
		ElementorProArchive: "/srv/archives/elementor-pro.zip",
		Plugins:             []string{"contact-form-7", "wordpress-seo", "contact-form-7", "elementor"},
	}
}

func inStaging() interface{} {
	return mock.MatchedBy(func(dir string) bool {
		return strings.HasPrefix(dir, stagingBase)
	})
}

func stageNamed(result *pipeline.Result, name string) *pipeline.StageResult {
	for i := range result.Stages {
		if result.Stages[i].Name == name {
			return &result.Stages[i]
		}
	}
	return nil
}

func TestDeploySucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.hosting.On("CreateDatabase", mock.Anything, "acme_shop_example_com").Return(nil).Once()
	f.hosting.On("CreateDatabaseUser", mock.Anything, "acme_shop_example_com", mock.Anything).Return(nil).Once()
	f.hosting.On("GrantPrivileges", mock.Anything, "acme_shop_example_com", "acme_shop_example_com", uapi.SitePrivileges).Return(nil).Once()
	f.hosting.On("MakeDirectory", mock.Anything, sitePath, uint32(0o755)).Return(nil).Once()
	f.hosting.On("MakeDirectory", mock.Anything, inStaging(), uint32(0o700)).Return(nil).Once()
	f.transfer.On("Upload", mock.Anything, "/srv/archives/elementor-pro.zip", inStaging(), "elementor-pro.zip").Return(&transfer.Upload{RemotePath: stagingBase + "x/elementor-pro.zip"}, nil).Once()
	f.sites.On("DownloadCore", mock.Anything, sitePath, "").Return(nil).Once()
	f.transfer.On("UploadContent", mock.Anything, wpconfig.FileName, mock.MatchedBy(func(content []byte) bool {
		return bytes.Contains(content, []byte("define( 'DB_NAME', 'acme_shop_example_com' );"))
	}), sitePath).Return(&transfer.Upload{}, nil).Once()
	f.sites.On("InstallCore", mock.Anything, sitePath, mock.MatchedBy(func(install wpcli.CoreInstall) bool {
		return install.URL == "https://shop.example.com" && install.AdminUser == "shopkeeper" && len(install.AdminPassword) >= 16
	})).Return(nil).Once()
	f.sites.On("InstallPlugin", mock.Anything, sitePath, "elementor").Return(nil).Once()
	f.sites.On("InstallPlugin", mock.Anything, sitePath, stagingBase+"x/elementor-pro.zip").Return(nil).Once()
	f.sites.On("InstallPlugin", mock.Anything, sitePath, "contact-form-7").Return(nil).Once()
	f.sites.On("InstallPlugin", mock.Anything, sitePath, "wordpress-seo").Return(nil).Once()
	f.sites.On("ActivateElementorLicense", mock.Anything, sitePath, licenseKey).Return(nil).Once()
	f.hosting.On("SetPermissions", mock.Anything, sitePath, uint32(0o755), uint32(0o644)).Return(nil).Once()
	f.hosting.On("Chmod", mock.Anything, sitePath+"/wp-config.php", uint32(0o600)).Return(nil).Once()
	f.hosting.On("RemovePath", mock.Anything, inStaging()).Return(nil).Once()
	f.defaults()

	result := f.orchestrator().Deploy(ctx, validRequest())

	require.Equal(t, pipeline.StatusSucceeded, result.Status, "stages: %+v", result.Stages)
	assert.Equal(t, pipeline.States, result.Transitions)
	assert.Equal(t, "https://shop.example.com/wp-admin/", result.AdminURL)
	assert.NotEmpty(t, result.DeploymentID)
	assert.Nil(t, result.Failure())

	require.NotNil(t, result.Credentials)
	assert.Equal(t, "acme_shop_example_com", result.Credentials.DatabaseName)
	assert.Equal(t, "shopkeeper", result.Credentials.AdminUser)
	assert.True(t, credentials.ValidPrefix(result.Credentials.TablePrefix))
	assert.GreaterOrEqual(t, len(result.Credentials.DatabasePassword), 16)

	for _, stage := range result.Stages {
		assert.NotEqual(t, pipeline.StageFailed, stage.Status, stage.Name)
	}
	f.sites.AssertNumberOfCalls(t, "InstallPlugin", 4)
	f.sites.AssertNotCalled(t, "ImportKit", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, pipeline.StageSkipped, stageNamed(result, "import template kit").Status)

	expected := `
# HELP wpdeploy_pipeline_deployments_total number of finished deployments by overall status
# TYPE wpdeploy_pipeline_deployments_total counter
wpdeploy_pipeline_deployments_total{status="succeeded"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(expected), "wpdeploy_pipeline_deployments_total"))
	assert.NotContains(t, f.logs.String(), result.Credentials.DatabasePassword)
	assert.NotContains(t, f.logs.String(), result.Credentials.AdminPassword)
}

func TestElementorProIntegrityFailureStopsBeforeCore(t *testing.T) {
	f := newFixture(t)
	f.transfer.On("Upload", mock.Anything, "/srv/archives/elementor-pro.zip", inStaging(), "elementor-pro.zip").
		Return(nil, deployerr.New(deployerr.KindIntegrity, "upload elementor-pro.zip", "checksum mismatch after 2 transfers")).Once()
	f.defaults()

	result := f.orchestrator().Deploy(context.Background(), validRequest())

	assert.Equal(t, pipeline.StatusFailed, result.Status)
	failure := result.Failure()
	require.NotNil(t, failure)
	assert.Equal(t, pipeline.ArchivesUploaded, failure.State)
	assert.Equal(t, deployerr.KindIntegrity, failure.Kind)
	assert.Empty(t, result.StagesIn(pipeline.CoreInstalled))
	assert.Equal(t, pipeline.Failed, result.Transitions[len(result.Transitions)-1])
	assert.NotContains(t, result.Transitions, pipeline.ArchivesUploaded)
	assert.Nil(t, result.Credentials)
	assert.Empty(t, result.AdminURL)

	f.sites.AssertNotCalled(t, "DownloadCore", mock.Anything, mock.Anything, mock.Anything)
	f.sites.AssertNotCalled(t, "InstallCore", mock.Anything, mock.Anything, mock.Anything)
	f.hosting.AssertNotCalled(t, "RemovePath", mock.Anything, mock.Anything)
}

func TestOptionalPluginFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.sites.On("InstallPlugin", mock.Anything, sitePath, "contact-form-7").
		Return(deployerr.New(deployerr.KindRemote, "wp plugin install contact-form-7", "command exited with status 1: Error: plugin not found")).Once()
	f.defaults()

	result := f.orchestrator().Deploy(context.Background(), validRequest())

	assert.Equal(t, pipeline.StatusSucceeded, result.Status)
	assert.Equal(t, pipeline.States, result.Transitions)

	failed := stageNamed(result, "install plugin contact-form-7")
	require.NotNil(t, failed)
	assert.Equal(t, pipeline.StageFailed, failed.Status)
	assert.Equal(t, deployerr.KindBestEffort, failed.Kind)
	assert.Contains(t, failed.Detail, "plugin not found")

	assert.Equal(t, pipeline.StageSucceeded, stageNamed(result, "install plugin wordpress-seo").Status)
	assert.Equal(t, pipeline.StageSucceeded, stageNamed(result, "activate Elementor Pro license").Status)
	assert.NotEmpty(t, result.StagesIn(pipeline.Finalized))
}

func TestSuppliedDatabasePasswordIsUsed(t *testing.T) {
	const supplied = "Supplied#Passw0rd-2024"

	f := newFixture(t)
	f.hosting.On("CreateDatabaseUser", mock.Anything, mock.Anything, supplied).Return(nil).Once()
	f.defaults()

	request := validRequest()
	request.DatabasePassword = supplied
	result := f.orchestrator().Deploy(context.Background(), request)

	require.True(t, result.Succeeded())
	assert.Equal(t, supplied, result.Credentials.DatabasePassword)
	assert.NotEqual(t, supplied, result.Credentials.AdminPassword)
	assert.NotContains(t, f.logs.String(), supplied)
}

func TestExistingDatabaseIsAConflict(t *testing.T) {
	f := newFixture(t)
	f.hosting.On("CreateDatabase", mock.Anything, "acme_shop_example_com").
		Return(deployerr.New(deployerr.KindResourceConflict, "Mysql/create_database", "The database acme_shop_example_com already exists.")).Once()
	f.defaults()

	result := f.orchestrator().Deploy(context.Background(), validRequest())

	assert.Equal(t, pipeline.StatusFailed, result.Status)
	failure := result.Failure()
	require.NotNil(t, failure)
	assert.Equal(t, pipeline.DatabaseProvisioned, failure.State)
	assert.Equal(t, deployerr.KindResourceConflict, failure.Kind)
	assert.Equal(t, []pipeline.State{pipeline.Initializing, pipeline.CredentialsReady, pipeline.Failed}, result.Transitions)

	f.hosting.AssertNotCalled(t, "CreateDatabaseUser", mock.Anything, mock.Anything, mock.Anything)
	f.hosting.AssertNotCalled(t, "GrantPrivileges", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.hosting.AssertNotCalled(t, "RemovePath", mock.Anything, mock.Anything)
	f.hosting.AssertNotCalled(t, "MakeDirectory", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvalidRequestMakesNoRemoteCalls(t *testing.T) {
	f := newFixture(t)
	f.defaults()

	request := validRequest()
	request.AdminEmail = "not-an-address"
	result := f.orchestrator().Deploy(context.Background(), request)

	assert.Equal(t, pipeline.StatusFailed, result.Status)
	assert.Equal(t, []pipeline.State{pipeline.Initializing, pipeline.Failed}, result.Transitions)
	require.Len(t, result.Stages, 1)
	assert.Equal(t, deployerr.KindInvalidInput, result.Stages[0].Kind)
	assert.Empty(t, f.hosting.Calls)
	assert.Empty(t, f.sites.Calls)
	assert.Empty(t, f.transfer.Calls)
}

func TestAuthenticationFailureIsFatalEvenInBestEffortStages(t *testing.T) {
	f := newFixture(t)
	f.sites.On("InstallPlugin", mock.Anything, sitePath, "elementor").
		Return(deployerr.New(deployerr.KindAuthentication, "Execute/exec", "credentials rejected by hosting API (HTTP 401)")).Once()
	f.defaults()

	result := f.orchestrator().Deploy(context.Background(), validRequest())

	assert.Equal(t, pipeline.StatusFailed, result.Status)
	failure := result.Failure()
	require.NotNil(t, failure)
	assert.Equal(t, pipeline.PluginsConfigured, failure.State)
	assert.Equal(t, deployerr.KindAuthentication, failure.Kind)
	f.sites.AssertNumberOfCalls(t, "InstallPlugin", 1)
	f.sites.AssertNotCalled(t, "ActivateElementorLicense", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancellationStopsRemoteCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t)
	f.hosting.On("CreateDatabase", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		cancel()
	}).Return(nil).Once()
	f.defaults()

	result := f.orchestrator().Deploy(ctx, validRequest())

	assert.Equal(t, pipeline.StatusFailed, result.Status)
	failure := result.Failure()
	require.NotNil(t, failure)
	assert.Equal(t, deployerr.KindCancelled, failure.Kind)
	assert.Equal(t, pipeline.DatabaseProvisioned, failure.State)
	f.hosting.AssertNotCalled(t, "CreateDatabaseUser", mock.Anything, mock.Anything, mock.Anything)
	f.hosting.AssertNotCalled(t, "RemovePath", mock.Anything, mock.Anything)
}

func TestSecretsAreRedacted(t *testing.T) {
	const supplied = "Db#Passw0rd-for-shop"

	f := newFixture(t)
	f.hosting.On("CreateDatabaseUser", mock.Anything, mock.Anything, supplied).
		Return(deployerr.Errorf(deployerr.KindRemote, "Mysql/create_user", "password %s is in a dictionary", supplied)).Once()
	f.defaults()

	request := validRequest()
	request.DatabasePassword = supplied
	result := f.orchestrator().Deploy(context.Background(), request)

	failure := result.Failure()
	require.NotNil(t, failure)
	assert.NotContains(t, failure.Detail, supplied)
	assert.Contains(t, failure.Detail, logging.Redacted)
	assert.NotContains(t, f.logs.String(), supplied)
	assert.NotContains(t, f.logs.String(), licenseKey)
}

func TestLicenseFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.sites.On("ActivateElementorLicense", mock.Anything, sitePath, licenseKey).
		Return(deployerr.Errorf(deployerr.KindRemote, "wp elementor-pro license activate", "license %s is expired", licenseKey)).Once()
	f.defaults()

	result := f.orchestrator().Deploy(context.Background(), validRequest())

	assert.True(t, result.Succeeded())
	stage := stageNamed(result, "activate Elementor Pro license")
	require.NotNil(t, stage)
	assert.Equal(t, deployerr.KindBestEffort, stage.Kind)
	assert.NotContains(t, stage.Detail, licenseKey)
}

func TestLicenseSkippedWithoutElementorPro(t *testing.T) {
	f := newFixture(t)
	f.sites.On("InstallPlugin", mock.Anything, sitePath, mock.MatchedBy(func(plugin string) bool {
		return strings.HasSuffix(plugin, "elementor-pro.zip")
	})).Return(deployerr.New(deployerr.KindRemote, "wp plugin install", "invalid archive")).Once()
	f.defaults()

	result := f.orchestrator().Deploy(context.Background(), validRequest())

	assert.True(t, result.Succeeded())
	assert.Equal(t, pipeline.StageSkipped, stageNamed(result, "activate Elementor Pro license").Status)
	f.sites.AssertNotCalled(t, "ActivateElementorLicense", mock.Anything, mock.Anything, mock.Anything)
}

func TestKitImport(t *testing.T) {
	t.Run("uploaded archive", func(t *testing.T) {
		f := newFixture(t)
		f.sites.On("ImportKit", mock.Anything, sitePath, mock.MatchedBy(func(source string) bool {
			return strings.HasPrefix(source, stagingBase) && strings.HasSuffix(source, "/elementor-kit.zip")
		})).Return(nil).Once()
		f.defaults()

		request := validRequest()
		request.KitArchive = "/srv/archives/kit.zip"
		result := f.orchestrator().Deploy(context.Background(), request)

		assert.True(t, result.Succeeded())
		assert.Equal(t, pipeline.StageSucceeded, stageNamed(result, "import template kit").Status)
	})

	t.Run("failed upload skips import", func(t *testing.T) {
		f := newFixture(t)
		f.transfer.On("Upload", mock.Anything, "/srv/archives/kit.zip", inStaging(), "elementor-kit.zip").
			Return(nil, deployerr.New(deployerr.KindIntegrity, "upload elementor-kit.zip", "checksum mismatch after 2 transfers")).Once()
		f.defaults()

		request := validRequest()
		request.KitArchive = "/srv/archives/kit.zip"
		result := f.orchestrator().Deploy(context.Background(), request)

		assert.True(t, result.Succeeded())
		assert.Equal(t, deployerr.KindBestEffort, stageNamed(result, "upload template kit archive").Kind)
		assert.Equal(t, pipeline.StageSkipped, stageNamed(result, "import template kit").Status)
		f.sites.AssertNotCalled(t, "ImportKit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("kit url", func(t *testing.T) {
		f := newFixture(t)
		f.sites.On("ImportKit", mock.Anything, sitePath, "https://kits.example.com/shop.zip").Return(nil).Once()
		f.defaults()

		request := validRequest()
		request.KitURL = "https://kits.example.com/shop.zip"
		result := f.orchestrator().Deploy(context.Background(), request)

		assert.True(t, result.Succeeded())
	})
}

func TestHardeningFindings(t *testing.T) {
	f := newFixture(t)
	f.sites.On("AdministratorLogins", mock.Anything, sitePath).Return([]string{"shopkeeper", "Admin", "shop"}, nil).Once()
	f.defaults()

	request := validRequest()
	request.AdminPassword = "tiny-pass"
	result := f.orchestrator().Deploy(context.Background(), request)

	assert.True(t, result.Succeeded())
	assert.Equal(t, pipeline.Finalized, result.Transitions[len(result.Transitions)-1])

	logins := stageNamed(result, "check administrator logins")
	require.NotNil(t, logins)
	assert.Equal(t, pipeline.StageFailed, logins.Status)
	assert.Contains(t, logins.Detail, "Admin, shop")

	passwords := stageNamed(result, "check supplied passwords")
	require.NotNil(t, passwords)
	assert.Equal(t, pipeline.StageFailed, passwords.Status)
	assert.Contains(t, passwords.Detail, "admin_password shorter than 16 characters")
}

func TestSaltSourceFallback(t *testing.T) {
	f := newFixture(t)
	f.defaults()

	o := f.orchestrator()
	o.Salts = func(ctx context.Context) (wpconfig.Salts, error) {
		return nil, errors.New("connection refused")
	}
	result := o.Deploy(context.Background(), validRequest())

	assert.True(t, result.Succeeded())
	assert.Contains(t, f.logs.String(), "Generating salts locally")
}

func TestConcurrentDeploymentsAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.defaults()
	o := f.orchestrator()

	results := make(chan *pipeline.Result, 2)
	for _, domain := range []string{"one.example.com", "two.example.com"} {
		request := validRequest()
		request.Domain = domain
		go func() {
			results <- o.Deploy(context.Background(), request)
		}()
	}

	first, second := <-results, <-results
	assert.True(t, first.Succeeded())
	assert.True(t, second.Succeeded())
	assert.NotEqual(t, first.DeploymentID, second.DeploymentID)
	assert.NotEqual(t, first.Credentials.TablePrefix, second.Credentials.TablePrefix)
	assert.NotEqual(t, first.Credentials.DatabaseName, second.Credentials.DatabaseName)
}
