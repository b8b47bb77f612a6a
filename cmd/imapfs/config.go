package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// config is the connection and tuning configuration of the CLI.
type config struct {
	Host          string        `mapstructure:"host" validate:"required,hostname_rfc1123|ip"`
	Port          int           `mapstructure:"port" validate:"min=1,max=65535"`
	Username      string        `mapstructure:"username" validate:"required"`
	Password      string        `mapstructure:"password" validate:"required_without=Token"`
	Token         string        `mapstructure:"token" validate:"required_without=Password"`
	RetryCount    int           `mapstructure:"retry_count" validate:"min=0,max=100"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout" validate:"min=0"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"min=0"`
	TLSSkipVerify bool          `mapstructure:"tls_skip_verify"`
	Verbose       bool          `mapstructure:"verbose"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 993)
	v.SetDefault("retry_count", 3)
	v.SetDefault("dial_timeout", 10*time.Second)
	v.SetDefault("timeout", 60*time.Second)
	v.SetDefault("tls_skip_verify", false)
	v.SetDefault("verbose", false)
}

// loadConfig merges defaults, the optional config file, IMAPFS_* environment
// variables and the flags bound to v, in increasing precedence.
func loadConfig(v *viper.Viper, configPath string) (*config, error) {
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("IMAPFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

func (c *config) validate() error {
	err := configValidator.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if m := fieldMessage(fe); !slices.Contains(msgs, m) {
			msgs = append(msgs, m)
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return "one of password or token is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "hostname_rfc1123|ip":
		return fmt.Sprintf("%s %q is not a hostname or IP address", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
