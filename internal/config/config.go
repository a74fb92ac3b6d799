package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerdcore/filecore/internal/logging"
)

// Config holds all filecore configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Mode        string            `yaml:"mode"`        // AutoAcceptMode: conservative, balanced, aggressive, plan_only, manual
	Weights     WeightsConfig     `yaml:"weights"`
	CoreLimits  CoreLimits        `yaml:"core_limits"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Retention   RetentionConfig   `yaml:"retention"`
	Preferences PreferencesConfig `yaml:"preferences"`
	CustomRules []CustomRule      `yaml:"custom_rules"`
	Learning    LearningConfig    `yaml:"learning"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// WeightsConfig is the normalized scoring weight vector (§4.3), summing to 1.
type WeightsConfig struct {
	Historical float64 `yaml:"historical"`
	Pattern    float64 `yaml:"pattern"`
	Context    float64 `yaml:"context"`
	Quality    float64 `yaml:"quality"`
	Feasibility float64 `yaml:"feasibility"`
	UserTrust  float64 `yaml:"user_trust"`
	Complexity float64 `yaml:"complexity"`
}

// CoreLimits enforces system-wide resource bounds.
type CoreLimits struct {
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`
	MaxBatchSize     int   `yaml:"max_batch_size"`
	MaxRollbackRetries int `yaml:"max_rollback_retries"`
}

// ExecutionConfig governs C8/C9 execution behavior.
type ExecutionConfig struct {
	StopOnError          bool     `yaml:"stop_on_error"`
	DryRun               bool     `yaml:"dry_run"`
	PostOpSyntaxCheck    bool     `yaml:"post_op_syntax_check"`
	StepTimeout          string   `yaml:"step_timeout"`
	TotalTimeout         string   `yaml:"total_timeout"`
	AllowedExtensions    []string `yaml:"allowed_extensions"`
	ForbiddenPathPatterns []string `yaml:"forbidden_path_patterns"`
}

// GetStepTimeout parses StepTimeout, defaulting to 5 minutes.
func (e ExecutionConfig) GetStepTimeout() time.Duration {
	d, err := time.ParseDuration(e.StepTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetTotalTimeout parses TotalTimeout, defaulting to 30 minutes.
func (e ExecutionConfig) GetTotalTimeout() time.Duration {
	d, err := time.ParseDuration(e.TotalTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// RetentionConfig controls history/backup retention (Open Question #2 resolution).
type RetentionConfig struct {
	MaxAge        string `yaml:"max_age"` // empty = indefinite
	SweepEnabled  bool   `yaml:"sweep_enabled"`
}

// PreferencesConfig holds user-tunable decision-engine preferences (§4.4).
type PreferencesConfig struct {
	ConfirmMassUpdates  bool `yaml:"confirm_mass_updates"`
	MassUpdateThreshold int  `yaml:"mass_update_threshold"`
	StrictValidation    bool `yaml:"strict_validation"`
}

// CustomRule is a user-defined path-matching decision override (§4.4.1).
type CustomRule struct {
	Pattern string `yaml:"pattern"` // regexp matched against operation path
	Action  string `yaml:"action"`  // always_auto_execute | always_confirm | always_block | require_backup
}

// LearningConfig governs the learning loop (C10).
type LearningConfig struct {
	Interval            string  `yaml:"interval"`
	AutoApply           bool    `yaml:"auto_apply"`
	MaxWeightAdjustment float64 `yaml:"max_weight_adjustment"`
	SignificanceZ       float64 `yaml:"significance_z"`
	MinHeldOutSamples   int     `yaml:"min_held_out_samples"`
}

// GetInterval parses the learning loop tick interval, defaulting to 1 hour.
func (l LearningConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(l.Interval)
	if err != nil {
		return time.Hour
	}
	return d
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "filecore",
		Version: "0.1.0",
		Mode:    "balanced",

		Weights: WeightsConfig{
			Historical:  0.25,
			Pattern:     0.20,
			Context:     0.15,
			Quality:     0.15,
			Feasibility: 0.10,
			UserTrust:   0.10,
			Complexity:  0.05,
		},

		CoreLimits: CoreLimits{
			MaxFileSizeBytes:   10 * 1024 * 1024,
			MaxBatchSize:       200,
			MaxRollbackRetries: 3,
		},

		Execution: ExecutionConfig{
			StopOnError:       true,
			DryRun:            false,
			PostOpSyntaxCheck: true,
			StepTimeout:       "5m",
			TotalTimeout:      "30m",
			ForbiddenPathPatterns: []string{
				"^\\.git/", "/\\.git/", "^/etc/", "^/proc/", "^/sys/",
			},
		},

		Retention: RetentionConfig{
			MaxAge:       "",
			SweepEnabled: false,
		},

		Preferences: PreferencesConfig{
			ConfirmMassUpdates:  true,
			MassUpdateThreshold: 5,
			StrictValidation:    false,
		},

		Learning: LearningConfig{
			Interval:            "1h",
			AutoApply:           false,
			MaxWeightAdjustment: 0.1,
			SignificanceZ:       1.96,
			MinHeldOutSamples:   20,
		},

		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		logging.BootError("failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logging.BootError("failed to parse config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("config loaded: mode=%s", cfg.Mode)
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if mode := os.Getenv("FILECORE_MODE"); mode != "" {
		c.Mode = mode
	}
	if db := os.Getenv("FILECORE_DB"); db != "" {
		_ = db // consumed by internal/history at open time via workspace-relative default; explicit override read there
	}
	if v := os.Getenv("FILECORE_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
	if v := os.Getenv("FILECORE_AUTO_APPLY_LEARNING"); v == "1" || v == "true" {
		c.Learning.AutoApply = true
	}
}

// ValidModes lists all supported auto-accept modes.
var ValidModes = []string{"conservative", "balanced", "aggressive", "plan_only", "manual"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validMode := false
	for _, m := range ValidModes {
		if c.Mode == m {
			validMode = true
			break
		}
	}
	if !validMode {
		return fmt.Errorf("invalid mode: %s (valid: %v)", c.Mode, ValidModes)
	}

	sum := c.Weights.Historical + c.Weights.Pattern + c.Weights.Context +
		c.Weights.Quality + c.Weights.Feasibility + c.Weights.UserTrust + c.Weights.Complexity
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}

	for _, r := range c.CustomRules {
		switch r.Action {
		case "always_auto_execute", "always_confirm", "always_block", "require_backup":
		default:
			return fmt.Errorf("invalid custom rule action: %s", r.Action)
		}
	}

	return nil
}
