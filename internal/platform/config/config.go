package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Procore ProcoreConfig `mapstructure:"procore"`
	Tiering TieringConfig `mapstructure:"tiering"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type ProcoreConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	TokenURL       string        `mapstructure:"token_url"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	RedirectURI    string        `mapstructure:"redirect_uri"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type TieringConfig struct {
	// Grand-total thresholds in whole currency units. POs at or above
	// LowThreshold and at or below HighThreshold land in the review band;
	// strictly above HighThreshold escalates.
	LowThreshold  string `mapstructure:"low_threshold"`
	HighThreshold string `mapstructure:"high_threshold"`

	// Sentinel identifying the ad-hoc "unallocated" cost code. Either the
	// flat code or the numeric cost-code id may match; an id of zero
	// disables the id check.
	UnallocatedFlatCode string `mapstructure:"unallocated_flat_code"`
	UnallocatedCodeID   int64  `mapstructure:"unallocated_code_id"`

	// Display timezone for justification notes.
	DisplayTimezone string `mapstructure:"display_timezone"`

	Fields TierFieldsConfig `mapstructure:"fields"`
}

// TierFieldsConfig names the custom fields on the purchase order that carry
// the tier flags and the optional justification note. Matching against the
// project's custom-field catalog is by exact label.
type TierFieldsConfig struct {
	AutoApprove   string `mapstructure:"auto_approve"`
	Tier1         string `mapstructure:"tier_1"`
	Tier2         string `mapstructure:"tier_2"`
	Tier3         string `mapstructure:"tier_3"`
	Tier4         string `mapstructure:"tier_4"`
	Justification string `mapstructure:"justification"`
}

type AuditConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("procore.base_url", "https://api.procore.com")
	viper.SetDefault("procore.token_url", "https://api.procore.com/oauth/token")
	viper.SetDefault("procore.request_timeout", 30*time.Second)
	viper.SetDefault("tiering.low_threshold", "5000")
	viper.SetDefault("tiering.high_threshold", "10000")
	viper.SetDefault("tiering.unallocated_flat_code", "99-999")
	viper.SetDefault("tiering.display_timezone", "America/New_York")
	viper.SetDefault("tiering.fields.auto_approve", "Approval: Auto-Approve")
	viper.SetDefault("tiering.fields.tier_1", "Approval: Tier 1")
	viper.SetDefault("tiering.fields.tier_2", "Approval: Tier 2")
	viper.SetDefault("tiering.fields.tier_3", "Approval: Tier 3")
	viper.SetDefault("tiering.fields.tier_4", "Approval: Tier 4")
	viper.SetDefault("tiering.fields.justification", "Approval Justification")
	viper.SetDefault("audit.database_path", "data/decisions.db")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
