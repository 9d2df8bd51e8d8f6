package authcore

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: jwt.access_ttl is read from
// AUTHCORE_JWT_ACCESS_TTL and the HS256 secret from AUTHCORE_JWT_SECRET.
const EnvPrefix = "AUTHCORE"

// LoadConfig reads a YAML, JSON or TOML file (the format follows the file
// extension) layered over DefaultConfig, then applies AUTHCORE_*
// environment overrides. An empty path skips the file. The result is
// validated before it is returned.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: reading %s: %v", ErrConfig, path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decoding: %v", ErrConfig, err)
	}

	if err := loadKeys(v, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return cfg, nil
}

// loadKeys resolves key material, which never travels through mapstructure.
func loadKeys(v *viper.Viper, cfg *Config) error {
	if secret := v.GetString("jwt.secret"); secret != "" {
		cfg.JWT.PrivateKey = []byte(secret)
	}
	if path := v.GetString("jwt.private_key_file"); path != "" {
		key, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: reading jwt private key: %v", ErrConfig, err)
		}
		cfg.JWT.PrivateKey = key
	}
	if path := v.GetString("jwt.public_key_file"); path != "" {
		key, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: reading jwt public key: %v", ErrConfig, err)
		}
		cfg.JWT.PublicKey = key
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// JWT
	v.SetDefault("jwt.access_ttl", d.JWT.AccessTTL)
	v.SetDefault("jwt.refresh_ttl", d.JWT.RefreshTTL)
	v.SetDefault("jwt.signing_method", d.JWT.SigningMethod)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.private_key_file", "")
	v.SetDefault("jwt.public_key_file", "")
	v.SetDefault("jwt.key_id", d.JWT.KeyID)
	v.SetDefault("jwt.issuer", d.JWT.Issuer)
	v.SetDefault("jwt.audience", d.JWT.Audience)
	v.SetDefault("jwt.leeway", d.JWT.Leeway)
	v.SetDefault("jwt.require_iat", d.JWT.RequireIAT)
	v.SetDefault("jwt.max_future_iat", d.JWT.MaxFutureIAT)
	v.SetDefault("jwt.allow_non_expiring", d.JWT.AllowNonExpiring)

	// Password
	v.SetDefault("password.memory", d.Password.Memory)
	v.SetDefault("password.time", d.Password.Time)
	v.SetDefault("password.parallelism", d.Password.Parallelism)
	v.SetDefault("password.salt_length", d.Password.SaltLength)
	v.SetDefault("password.key_length", d.Password.KeyLength)
	v.SetDefault("password.max_password_bytes", d.Password.MaxPasswordBytes)

	// Security
	v.SetDefault("security.production_mode", d.Security.ProductionMode)
	v.SetDefault("security.enforce_password_policy", d.Security.EnforcePasswordPolicy)

	// Audit
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)

	// Metrics
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", d.Metrics.EnableLatencyHistograms)

	// Limiter
	v.SetDefault("limiter.backend", string(d.Limiter.Backend))
	v.SetDefault("limiter.enable_ip_throttle", d.Limiter.EnableIPThrottle)
	v.SetDefault("limiter.max_login_attempts", d.Limiter.MaxLoginAttempts)
	v.SetDefault("limiter.login_cooldown", d.Limiter.LoginCooldownDuration)
	v.SetDefault("limiter.key_prefix", d.Limiter.KeyPrefix)

	// Session
	v.SetDefault("session.enabled", d.Session.Enabled)
	v.SetDefault("session.backend", string(d.Session.Backend))
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.max_per_user", d.Session.MaxPerUser)
	v.SetDefault("session.key_prefix", d.Session.KeyPrefix)
}
