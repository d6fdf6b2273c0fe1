// Package config loads the services daemon configuration from a YAML, TOML,
// or JSON file (or URL), with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the services daemon configuration
type Config struct {
	// Uplink settings for the connection to the IRC network
	Uplink struct {
		Server   string `yaml:"server" toml:"server" json:"server" env:"SVCS_UPLINK_SERVER" validate:"required,hostname"`
		Port     int    `yaml:"port" toml:"port" json:"port" env:"SVCS_UPLINK_PORT" validate:"min=1,max=65535"`
		Password string `yaml:"password" toml:"password" json:"password" env:"SVCS_UPLINK_PASSWORD"`
		TLS      bool   `yaml:"tls" toml:"tls" json:"tls" env:"SVCS_UPLINK_TLS"`
		Nick     string `yaml:"nick" toml:"nick" json:"nick" env:"SVCS_UPLINK_NICK" validate:"required"`
		Protocol string `yaml:"protocol" toml:"protocol" json:"protocol" env:"SVCS_UPLINK_PROTOCOL" validate:"oneof=unreal hybrid rfc1459"`
	} `yaml:"uplink" toml:"uplink" json:"uplink"`

	// Network settings
	Network struct {
		Name            string `yaml:"name" toml:"name" json:"name" env:"SVCS_NETWORK_NAME" validate:"required"`
		NoNickOwnership bool   `yaml:"no_nick_ownership" toml:"no_nick_ownership" json:"no_nick_ownership" env:"SVCS_NO_NICK_OWNERSHIP"`
		MaxNicks        int    `yaml:"max_nicks" toml:"max_nicks" json:"max_nicks" env:"SVCS_MAX_NICKS" validate:"min=1"`
		MaxLogins       int    `yaml:"max_logins" toml:"max_logins" json:"max_logins" env:"SVCS_MAX_LOGINS" validate:"min=1"`
		JoinChans       bool   `yaml:"join_chans" toml:"join_chans" json:"join_chans" env:"SVCS_JOIN_CHANS"`
	} `yaml:"network" toml:"network" json:"network"`

	// Database settings
	Database struct {
		Path string `yaml:"path" toml:"path" json:"path" env:"SVCS_DB_PATH" validate:"required"`
	} `yaml:"database" toml:"database" json:"database"`

	// Admin/status HTTP endpoint settings
	Admin struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"SVCS_ADMIN_ENABLED"`
		Host    string `yaml:"host" toml:"host" json:"host" env:"SVCS_ADMIN_HOST"`
		Port    int    `yaml:"port" toml:"port" json:"port" env:"SVCS_ADMIN_PORT" validate:"min=0,max=65535"`
	} `yaml:"admin" toml:"admin" json:"admin"`

	// Operator definitions: accounts granted services privileges by name
	Operators []struct {
		Account string   `yaml:"account" toml:"account" json:"account" validate:"required"`
		Privs   []string `yaml:"privs" toml:"privs" json:"privs"`
	} `yaml:"operators" toml:"operators" json:"operators"`

	// Configuration source for rehashing
	Source string
}

// Load loads configuration from a file or URL
func Load(source string) (*Config, error) {
	cfg := &Config{
		Source: source,
	}

	// Set defaults
	cfg.Uplink.Port = 6667
	cfg.Uplink.Nick = "NickServ"
	cfg.Uplink.Protocol = "unreal"
	cfg.Network.Name = "services.int"
	cfg.Network.MaxNicks = 5
	cfg.Network.MaxLogins = 5
	cfg.Network.JoinChans = true
	cfg.Database.Path = "services.db"
	cfg.Admin.Host = "127.0.0.1"
	cfg.Admin.Port = 8080

	err := cfg.loadFromSource(source)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}

	return cfg, nil
}

// Reload reloads the configuration from the original source or a new source
func (c *Config) Reload(newSource string) error {
	if newSource != "" {
		c.Source = newSource
	}

	newCfg, err := Load(c.Source)
	if err != nil {
		return err
	}

	*c = *newCfg
	return nil
}

// loadFromSource loads configuration from a file or URL
func (c *Config) loadFromSource(source string) error {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return fmt.Errorf("failed to load config from URL: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to load config from URL, status: %s", resp.Status)
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read config from URL: %v", err)
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read config file: %v", err)
		}
	}

	// Determine the format based on file extension
	switch {
	case strings.HasSuffix(source, ".yaml") || strings.HasSuffix(source, ".yml"):
		err = yaml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".json"):
		err = json.Unmarshal(data, c)
	default:
		// Default to YAML
		err = yaml.Unmarshal(data, c)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config: %v", err)
	}

	c.Source = source
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem())
}

func applyEnvOverridesRecursive(v reflect.Value) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		// Skip unexported fields
		if field.PkgPath != "" {
			continue
		}

		envTag := field.Tag.Get("env")

		if envTag != "" {
			if envValue, exists := os.LookupEnv(envTag); exists {
				setFieldFromEnv(fieldValue, envValue)
			}
		} else if field.Type.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(fieldValue)
		}
	}
}

// setFieldFromEnv sets a field's value from an environment variable
func setFieldFromEnv(field reflect.Value, envValue string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := parseInt(envValue); err == nil {
			field.SetInt(v)
		}
	case reflect.Bool:
		if v, err := parseBool(envValue); err == nil {
			field.SetBool(v)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			values := strings.Split(envValue, ",")
			slice := reflect.MakeSlice(field.Type(), len(values), len(values))
			for i, v := range values {
				slice.Index(i).SetString(strings.TrimSpace(v))
			}
			field.Set(slice)
		}
	}
}

func parseInt(s string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

func parseBool(s string) (bool, error) {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "y", nil
}

// GetAdminListenAddress returns the formatted listen address for the admin endpoint
func (c *Config) GetAdminListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}

// GetUplinkAddress returns the formatted uplink server address
func (c *Config) GetUplinkAddress() string {
	return fmt.Sprintf("%s:%d", c.Uplink.Server, c.Uplink.Port)
}

// PrivsFor returns the configured services privileges for an account.
func (c *Config) PrivsFor(accountName string) []string {
	for _, op := range c.Operators {
		if strings.EqualFold(op.Account, accountName) {
			return op.Privs
		}
	}
	return nil
}
