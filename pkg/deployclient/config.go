package deployclient

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressops/wpdeploy/pkg/conftools"
	"github.com/pressops/wpdeploy/pkg/logging"
	"github.com/pressops/wpdeploy/pkg/output"
	"github.com/pressops/wpdeploy/pkg/uapi"
	"github.com/pressops/wpdeploy/pkg/wpconfig"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix             = "WPDEPLOY"
	DefaultDeployTimeout  = time.Minute * 30
	DefaultParallel       = 1
	DefaultLogLevel       = "info"
	DefaultOutputFormat   = output.FormatTable
	DefaultRequestTimeout = uapi.DefaultCallTimeout
)

var (
	ErrRequestRequired     = errors.New("at least one request file is required")
	ErrHostRequired        = errors.New("cPanel host is required")
	ErrUsernameRequired    = errors.New("cPanel username is required")
	ErrAuthRequired        = errors.New("cPanel password or API token required")
	ErrInvalidAuthType     = errors.New("auth-type must be 'password' or 'token'")
	ErrInvalidOutput       = errors.New("output must be 'table' or 'json'")
	ErrInvalidParallel     = errors.New("parallel must be at least 1")
	ErrInvalidTimeout      = errors.New("timeout must be positive")
	ErrResultKeyRequired   = errors.New("result-key is required with result-file")
	ErrUnsealKeyRequired   = errors.New("result-key is required with unseal")
	ErrMalformedResultKey  = errors.New("result-key must be a fernet key")
	ErrInsecureSaltURL     = errors.New("salt-url must be an https URL")
	ErrInvalidMaxAttempts  = errors.New("max-attempts must be at least 1")
	ErrInvalidCallTimeout  = errors.New("call-timeout must be positive")
	ErrRetryIntervalsOrder = errors.New("retry-initial-interval must not exceed retry-max-interval")
)

// Keys never printed in clear text.
var SecretKeys = []string{"password", "token", "result-key"}

type Config struct {
	AuthType             string        `json:"auth-type"`
	CallTimeout          time.Duration `json:"call-timeout"`
	ConfigFile           string        `json:"config"`
	DryRun               bool          `json:"dry-run"`
	EnvFile              string        `json:"env-file"`
	GenerateResultKey    bool          `json:"generate-result-key"`
	Host                 string        `json:"host"`
	InsecureSkipVerify   bool          `json:"insecure-skip-verify"`
	LogFormat            string        `json:"log-format"`
	LogLevel             string        `json:"log-level"`
	MaxAttempts          int           `json:"max-attempts"`
	OpenTelemetryURL     string        `json:"otel-collector-endpoint"`
	Output               string        `json:"output"`
	Parallel             int           `json:"parallel"`
	Password             string        `json:"password"`
	Port                 int           `json:"port"`
	PrintRequest         bool          `json:"print-request"`
	PushgatewayURL       string        `json:"pushgateway-url"`
	Quiet                bool          `json:"quiet"`
	Request              []string      `json:"request"`
	ResultFile           string        `json:"result-file"`
	ResultKey            string        `json:"result-key"`
	RetryInitialInterval time.Duration `json:"retry-initial-interval"`
	RetryMaxInterval     time.Duration `json:"retry-max-interval"`
	SaltURL              string        `json:"salt-url"`
	Timeout              time.Duration `json:"timeout"`
	Token                string        `json:"token"`
	Unseal               string        `json:"unseal"`
	Username             string        `json:"username"`
	Variables            []string      `json:"var"`
	VariablesFile        string        `json:"vars"`
}

func FlagSet() *flag.FlagSet {
	flags := flag.NewFlagSet("wpdeploy", flag.ContinueOnError)
	flags.SortFlags = false

	flags.StringSlice("request", nil, "File with one or more site requests in YAML or JSON. Can be specified multiple times. (env WPDEPLOY_REQUEST)")
	flags.StringSlice("var", nil, "Template variable in the form KEY=VALUE. Can be specified multiple times. (env WPDEPLOY_VAR)")
	flags.String("vars", "", "File containing template variables. (env WPDEPLOY_VARS)")

	flags.String("host", "", "cPanel host name. (env WPDEPLOY_HOST)")
	flags.Int("port", uapi.DefaultPort, "cPanel UAPI port. (env WPDEPLOY_PORT)")
	flags.String("username", "", "cPanel account user name. (env WPDEPLOY_USERNAME)")
	flags.String("auth-type", string(uapi.AuthToken), "Authenticate with a 'password' or an API 'token'. (env WPDEPLOY_AUTH_TYPE)")
	flags.String("password", "", "cPanel account password. Prompted for if unset and needed. (env WPDEPLOY_PASSWORD)")
	flags.String("token", "", "cPanel API token. Prompted for if unset and needed. (env WPDEPLOY_TOKEN)")
	flags.Bool("insecure-skip-verify", false, "Accept any TLS certificate from the cPanel host. (env WPDEPLOY_INSECURE_SKIP_VERIFY)")
	flags.Duration("call-timeout", DefaultRequestTimeout, "Time limit for a single cPanel API call. (env WPDEPLOY_CALL_TIMEOUT)")
	flags.Int("max-attempts", uapi.DefaultMaxAttempts, "Attempts per cPanel API call when the failure is transient. (env WPDEPLOY_MAX_ATTEMPTS)")
	flags.Duration("retry-initial-interval", uapi.DefaultInitialInterval, "Wait before the first retry. (env WPDEPLOY_RETRY_INITIAL_INTERVAL)")
	flags.Duration("retry-max-interval", uapi.DefaultMaxInterval, "Longest wait between retries. (env WPDEPLOY_RETRY_MAX_INTERVAL)")

	flags.Duration("timeout", DefaultDeployTimeout, "Time limit for each deployment. (env WPDEPLOY_TIMEOUT)")
	flags.Int("parallel", DefaultParallel, "Deployments to run at the same time. (env WPDEPLOY_PARALLEL)")
	flags.Bool("dry-run", false, "Validate and template requests, but don't make any remote calls. (env WPDEPLOY_DRY_RUN)")
	flags.Bool("print-request", false, "Print templated requests to standard output with secrets masked. (env WPDEPLOY_PRINT_REQUEST)")
	flags.String("salt-url", wpconfig.DefaultSaltURL, "WordPress secret-key service. (env WPDEPLOY_SALT_URL)")

	flags.String("output", DefaultOutputFormat, "Result format, 'table' or 'json'. (env WPDEPLOY_OUTPUT)")
	flags.String("result-file", "", "Write the full result, credentials included, encrypted to this file. (env WPDEPLOY_RESULT_FILE)")
	flags.String("result-key", "", "Fernet key for result-file. (env WPDEPLOY_RESULT_KEY)")
	flags.Bool("generate-result-key", false, "Print a new result-key and exit.")
	flags.String("unseal", "", "Decrypt a result-file with result-key, print it and exit.")

	flags.String("log-level", DefaultLogLevel, "Logging verbosity level. (env WPDEPLOY_LOG_LEVEL)")
	flags.String("log-format", logging.FormatText, "Log format, 'text', 'json' or 'actions'. (env WPDEPLOY_LOG_FORMAT)")
	flags.Bool("quiet", false, "Suppress printing of informational messages except errors. (env WPDEPLOY_QUIET)")
	flags.String("otel-collector-endpoint", "", "OpenTelemetry collector endpoint; tracing is off when empty. (env WPDEPLOY_OTEL_COLLECTOR_ENDPOINT)")
	flags.String("pushgateway-url", "", "Prometheus Pushgateway to push run metrics to. (env WPDEPLOY_PUSHGATEWAY_URL)")

	flags.String("config", "", "YAML configuration file. (env WPDEPLOY_CONFIG)")
	flags.String("env-file", "", "Dotenv file loaded into the environment before anything else. (env WPDEPLOY_ENV_FILE)")

	return flags
}

// LoadConfig resolves configuration with the following precedence:
// flags > environment variables > configuration file > default values.
func LoadConfig(args []string) (*Config, *viper.Viper, error) {
	flags := FlagSet()
	err := flags.Parse(args)
	if err != nil {
		return nil, nil, ErrorWrap(ExitInvocationFailure, err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	err = v.BindPFlags(flags)
	if err != nil {
		return nil, nil, ErrorWrap(ExitInternalError, err)
	}

	if envFile := v.GetString("env-file"); len(envFile) > 0 {
		err = godotenv.Load(envFile)
		if err != nil {
			return nil, nil, Errorf(ExitInvocationFailure, "load env file: %s", err)
		}
	}

	if configFile := v.GetString("config"); len(configFile) > 0 {
		v.SetConfigFile(configFile)
	}

	cfg := &Config{}
	err = conftools.Load(v, flags, cfg)
	if err != nil {
		return nil, nil, ErrorWrap(ExitInvocationFailure, err)
	}

	return cfg, v, nil
}

// Validate checks settings needed for templating. Connection settings are checked by ValidateConnection.
func (cfg *Config) Validate() error {
	if len(cfg.Request) == 0 {
		return ErrRequestRequired
	}

	if cfg.Output != output.FormatTable && cfg.Output != output.FormatJSON {
		return ErrInvalidOutput
	}

	if cfg.Parallel < 1 {
		return ErrInvalidParallel
	}

	if cfg.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if len(cfg.ResultFile) > 0 {
		if len(cfg.ResultKey) == 0 {
			return ErrResultKeyRequired
		}
		if _, err := output.ParseKey(cfg.ResultKey); err != nil {
			return ErrMalformedResultKey
		}
	}

	if len(cfg.SaltURL) > 0 && !strings.HasPrefix(cfg.SaltURL, "https://") {
		return ErrInsecureSaltURL
	}

	return nil
}

// ValidateConnection checks the cPanel connection settings.
func (cfg *Config) ValidateConnection() error {
	if len(cfg.Host) == 0 {
		return ErrHostRequired
	}

	if len(cfg.Username) == 0 {
		return ErrUsernameRequired
	}

	switch uapi.AuthType(cfg.AuthType) {
	case uapi.AuthPassword:
		if len(cfg.Password) == 0 {
			return ErrAuthRequired
		}
	case uapi.AuthToken:
		if len(cfg.Token) == 0 {
			return ErrAuthRequired
		}
	default:
		return ErrInvalidAuthType
	}

	if cfg.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if cfg.CallTimeout <= 0 {
		return ErrInvalidCallTimeout
	}

	if cfg.RetryInitialInterval > cfg.RetryMaxInterval {
		return ErrRetryIntervalsOrder
	}

	return nil
}

// Secret returns the configured credential for the selected auth type.
func (cfg *Config) Secret() string {
	if uapi.AuthType(cfg.AuthType) == uapi.AuthPassword {
		return cfg.Password
	}
	return cfg.Token
}

// SetSecret stores a credential obtained elsewhere, e.g. from a prompt.
func (cfg *Config) SetSecret(secret string) {
	if uapi.AuthType(cfg.AuthType) == uapi.AuthPassword {
		cfg.Password = secret
		return
	}
	cfg.Token = secret
}

func (cfg *Config) UAPI() uapi.Config {
	return uapi.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		Username:           cfg.Username,
		AuthType:           uapi.AuthType(cfg.AuthType),
		Password:           cfg.Password,
		Token:              cfg.Token,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		CallTimeout:        cfg.CallTimeout,
		MaxAttempts:        cfg.MaxAttempts,
		InitialInterval:    cfg.RetryInitialInterval,
		MaxInterval:        cfg.RetryMaxInterval,
	}
}

func (cfg *Config) String() string {
	return fmt.Sprintf("%s@%s:%d", cfg.Username, cfg.Host, cfg.Port)
}
