package accounts

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

const (
	ProviderKindMemory  = "memory"
	ProviderKindCognito = "cognito"
)

// Config holds all accounts configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Cognito  CognitoConfig  `yaml:"cognito"`
	Session  SessionConfig  `yaml:"session"`
	Activity ActivityConfig `yaml:"activity"`
	Routes   RoutesConfig   `yaml:"routes"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address  string `yaml:"address"`
	ViewsDir string `yaml:"views_dir"`
	Debug    bool   `yaml:"debug"`
	Metrics  bool   `yaml:"metrics"`
}

// ProviderConfig selects the identity provider
type ProviderConfig struct {
	Kind             string `yaml:"kind"`
	LockoutOnFailure bool   `yaml:"lockout_on_failure"`
	PhoneRegion      string `yaml:"phone_region"`
}

// CognitoConfig configures the Cognito user pool client
type CognitoConfig struct {
	Region       string `yaml:"region"`
	UserPoolID   string `yaml:"user_pool_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	VerifyTokens bool   `yaml:"verify_tokens"`
}

// SessionConfig configures the session cookie set after sign in
type SessionConfig struct {
	CookieName       string        `yaml:"cookie_name"`
	Duration         time.Duration `yaml:"duration"`
	ExtendedDuration time.Duration `yaml:"extended_duration"`
	Secure           bool          `yaml:"secure"`
}

// ActivityConfig configures the activity store
type ActivityConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// RoutesConfig holds the paths the controller serves and redirects to
type RoutesConfig struct {
	Login   string `yaml:"login"`
	Logout  string `yaml:"logout"`
	Signup  string `yaml:"signup"`
	Confirm string `yaml:"confirm"`
	Home    string `yaml:"home"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:  ":8572",
			ViewsDir: "./views",
		},
		Provider: ProviderConfig{
			Kind:        ProviderKindMemory,
			PhoneRegion: DefaultPhoneRegion,
		},
		Session: SessionConfig{
			CookieName:       "accounts_session",
			Duration:         24 * time.Hour,
			ExtendedDuration: 30 * 24 * time.Hour,
			Secure:           true,
		},
		Activity: ActivityConfig{
			DSN: "file::memory:?cache=shared",
		},
		Routes: RoutesConfig{
			Login:   "/accounts/login",
			Logout:  "/accounts/logout",
			Signup:  "/accounts/signup",
			Confirm: "/accounts/confirm",
			Home:    "/",
		},
	}
}

// LoadConfig reads the YAML file at path (optional) over the defaults,
// applies ACCOUNTS_* environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file")
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse config file")
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Address = getEnv("ACCOUNTS_ADDRESS", c.Server.Address)
	c.Server.ViewsDir = getEnv("ACCOUNTS_VIEWS_DIR", c.Server.ViewsDir)
	c.Server.Debug = getEnvBool("ACCOUNTS_DEBUG", c.Server.Debug)
	c.Server.Metrics = getEnvBool("ACCOUNTS_METRICS", c.Server.Metrics)

	c.Provider.Kind = getEnv("ACCOUNTS_PROVIDER", c.Provider.Kind)
	c.Provider.LockoutOnFailure = getEnvBool("ACCOUNTS_LOCKOUT_ON_FAILURE", c.Provider.LockoutOnFailure)
	c.Provider.PhoneRegion = getEnv("ACCOUNTS_PHONE_REGION", c.Provider.PhoneRegion)

	c.Cognito.Region = getEnv("ACCOUNTS_COGNITO_REGION", c.Cognito.Region)
	c.Cognito.UserPoolID = getEnv("ACCOUNTS_COGNITO_USER_POOL_ID", c.Cognito.UserPoolID)
	c.Cognito.ClientID = getEnv("ACCOUNTS_COGNITO_CLIENT_ID", c.Cognito.ClientID)
	c.Cognito.ClientSecret = getEnv("ACCOUNTS_COGNITO_CLIENT_SECRET", c.Cognito.ClientSecret)
	c.Cognito.Endpoint = getEnv("ACCOUNTS_COGNITO_ENDPOINT", c.Cognito.Endpoint)
	c.Cognito.AccessKey = getEnv("ACCOUNTS_COGNITO_ACCESS_KEY", c.Cognito.AccessKey)
	c.Cognito.SecretKey = getEnv("ACCOUNTS_COGNITO_SECRET_KEY", c.Cognito.SecretKey)
	c.Cognito.VerifyTokens = getEnvBool("ACCOUNTS_COGNITO_VERIFY_TOKENS", c.Cognito.VerifyTokens)

	c.Session.CookieName = getEnv("ACCOUNTS_SESSION_COOKIE", c.Session.CookieName)
	c.Session.Duration = getEnvDuration("ACCOUNTS_SESSION_DURATION", c.Session.Duration)
	c.Session.ExtendedDuration = getEnvDuration("ACCOUNTS_SESSION_EXTENDED_DURATION", c.Session.ExtendedDuration)
	c.Session.Secure = getEnvBool("ACCOUNTS_SESSION_SECURE", c.Session.Secure)

	c.Activity.Enabled = getEnvBool("ACCOUNTS_ACTIVITY_ENABLED", c.Activity.Enabled)
	c.Activity.DSN = getEnv("ACCOUNTS_ACTIVITY_DSN", c.Activity.DSN)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	err := validation.Errors{
		"server": validation.ValidateStruct(&c.Server,
			validation.Field(&c.Server.Address, validation.Required),
		),
		"provider": validation.ValidateStruct(&c.Provider,
			validation.Field(&c.Provider.Kind,
				validation.Required,
				validation.In(ProviderKindMemory, ProviderKindCognito),
			),
			validation.Field(&c.Provider.PhoneRegion, validation.Length(2, 2)),
		),
		"session": validation.ValidateStruct(&c.Session,
			validation.Field(&c.Session.CookieName, validation.Required),
			validation.Field(&c.Session.Duration, validation.Required, validation.Min(time.Minute)),
			validation.Field(&c.Session.ExtendedDuration, validation.Min(c.Session.Duration)),
		),
		"routes": validation.ValidateStruct(&c.Routes,
			validation.Field(&c.Routes.Login, validation.Required),
			validation.Field(&c.Routes.Logout, validation.Required),
			validation.Field(&c.Routes.Signup, validation.Required),
			validation.Field(&c.Routes.Confirm, validation.Required),
			validation.Field(&c.Routes.Home, validation.Required),
		),
	}

	if c.Provider.Kind == ProviderKindCognito {
		err["cognito"] = validation.ValidateStruct(&c.Cognito,
			validation.Field(&c.Cognito.Region, validation.Required),
			validation.Field(&c.Cognito.UserPoolID, validation.Required),
			validation.Field(&c.Cognito.ClientID, validation.Required),
		)
	}

	if c.Activity.Enabled {
		err["activity"] = validation.ValidateStruct(&c.Activity,
			validation.Field(&c.Activity.DSN, validation.Required),
		)
	}

	if verr := err.Filter(); verr != nil {
		clone := ErrInvalidConfig.Clone()
		clone.Source = verr
		clone.WithMetadata(map[string]any{
			"errors": verr.Error(),
		})
		return clone
	}

	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func (c *Config) String() string {
	return fmt.Sprintf("provider=%s address=%s activity=%t", c.Provider.Kind, c.Server.Address, c.Activity.Enabled)
}
