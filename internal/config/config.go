// Package config holds the viper-backed application configuration. Every
// tunable of the engine lives here as data, including the classifier keyword
// tables, so heuristic behavior can be adjusted per site variant without
// touching code.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root of the application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Navigator  NavigatorConfig  `mapstructure:"navigator"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Answers    AnswersConfig    `mapstructure:"answers"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Profile    ProfileConfig    `mapstructure:"profile"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // console or json
	Color       bool   `mapstructure:"color"`
	AddSource   bool   `mapstructure:"add_source"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"` // days
	Compress    bool   `mapstructure:"compress"`
}

// BrowserConfig controls the Chrome process lifecycle.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	UserDataDir       string        `mapstructure:"user_data_dir"`
	UserAgent         string        `mapstructure:"user_agent"`
	WindowWidth       int           `mapstructure:"window_width"`
	WindowHeight      int           `mapstructure:"window_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

// NavigatorConfig bounds the step loop and its waits.
type NavigatorConfig struct {
	MaxSteps            int           `mapstructure:"max_steps"`
	SettleDelay         time.Duration `mapstructure:"settle_delay"`
	StepPollInterval    time.Duration `mapstructure:"step_poll_interval"`
	StalledPollExtra    time.Duration `mapstructure:"stalled_poll_extra"`
	ConfirmTimeout      time.Duration `mapstructure:"confirm_timeout"`
	ConfirmPollInterval time.Duration `mapstructure:"confirm_poll_interval"`
	// WeakSignalThreshold is how many distinct weak confirmation signals
	// count as a submit confirmation when no explicit banner appears.
	WeakSignalThreshold int `mapstructure:"weak_signal_threshold"`
	// AssumeSuccessOnVanish treats the step container disappearing at the
	// confirmation deadline as success. Best-effort policy, not ground truth.
	AssumeSuccessOnVanish bool `mapstructure:"assume_success_on_vanish"`
	// StallThreshold is the number of consecutive non-increasing progress
	// snapshots after which the tracker reports stuck.
	StallThreshold int `mapstructure:"stall_threshold"`
}

// ClassifierConfig carries the per-category keyword tables. Matching is
// case-insensitive substring matching against the inferred field label.
type ClassifierConfig struct {
	CountryKeywords    []string `mapstructure:"country_keywords"`
	CityKeywords       []string `mapstructure:"city_keywords"`
	PhoneKeywords      []string `mapstructure:"phone_keywords"`
	EmailKeywords      []string `mapstructure:"email_keywords"`
	ExperienceKeywords []string `mapstructure:"experience_keywords"`
	SummaryKeywords    []string `mapstructure:"summary_keywords"`
	CoverKeywords      []string `mapstructure:"cover_keywords"`
	ConsentKeywords    []string `mapstructure:"consent_keywords"`
	LanguageKeywords   []string `mapstructure:"language_keywords"`
	SkillKeywords      []string `mapstructure:"skill_keywords"`
	// KnownCountries feeds the option-density fallback for select controls
	// whose label is inconclusive.
	KnownCountries []string `mapstructure:"known_countries"`
	// CountryOptionSample and CountryOptionHits bound the density check:
	// at least Hits of the first Sample options must look like countries.
	CountryOptionSample int `mapstructure:"country_option_sample"`
	CountryOptionHits   int `mapstructure:"country_option_hits"`
}

// AnswersConfig controls the external answer-generation client.
type AnswersConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetryTime   time.Duration `mapstructure:"max_retry_time"`
	RequestsPerMin int           `mapstructure:"requests_per_min"`
	Enabled        bool          `mapstructure:"enabled"`
}

// CacheConfig controls the persisted answer cache.
type CacheConfig struct {
	DatabaseURL string  `mapstructure:"database_url"`
	FuzzyFloor  float64 `mapstructure:"fuzzy_floor"`
}

// ProfileConfig is the user bundle supplied once per attempt: free-text
// profile for the answer service plus per-category contact defaults.
type ProfileConfig struct {
	FreeText        string `mapstructure:"free_text"`
	Email           string `mapstructure:"email"`
	Phone           string `mapstructure:"phone"`
	Country         string `mapstructure:"country"`
	City            string `mapstructure:"city"`
	ExperienceYears string `mapstructure:"experience_years"`
}

// Load reads the configuration from the given file (or the default search
// path when empty), layered under FORMPILOT_* environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FORMPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults plus env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not unmarshal: %v", err))
	}
	return &cfg
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Navigator.MaxSteps <= 0 {
		return fmt.Errorf("navigator.max_steps must be positive, got %d", c.Navigator.MaxSteps)
	}
	if c.Navigator.StallThreshold <= 0 {
		return fmt.Errorf("navigator.stall_threshold must be positive, got %d", c.Navigator.StallThreshold)
	}
	if c.Cache.FuzzyFloor < 0 || c.Cache.FuzzyFloor > 1 {
		return fmt.Errorf("cache.fuzzy_floor must be in [0,1], got %v", c.Cache.FuzzyFloor)
	}
	if c.Answers.Enabled && c.Answers.Endpoint == "" {
		return fmt.Errorf("answers.endpoint is required when answers.enabled is true")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.color", true)
	v.SetDefault("logger.service_name", "formpilot")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.navigation_timeout", 45*time.Second)

	v.SetDefault("navigator.max_steps", 12)
	v.SetDefault("navigator.settle_delay", 300*time.Millisecond)
	v.SetDefault("navigator.step_poll_interval", 500*time.Millisecond)
	v.SetDefault("navigator.stalled_poll_extra", 2*time.Second)
	v.SetDefault("navigator.confirm_timeout", 15*time.Second)
	v.SetDefault("navigator.confirm_poll_interval", 500*time.Millisecond)
	v.SetDefault("navigator.weak_signal_threshold", 2)
	v.SetDefault("navigator.assume_success_on_vanish", true)
	v.SetDefault("navigator.stall_threshold", 3)

	v.SetDefault("classifier.country_keywords", []string{"country", "nationality", "citizenship", "country/region"})
	v.SetDefault("classifier.city_keywords", []string{"city", "town", "location", "where are you based"})
	v.SetDefault("classifier.phone_keywords", []string{"phone", "mobile", "telephone", "cell"})
	v.SetDefault("classifier.email_keywords", []string{"email", "e-mail"})
	v.SetDefault("classifier.experience_keywords", []string{"years of experience", "years of work", "how many years", "experience with"})
	v.SetDefault("classifier.summary_keywords", []string{"summary", "describe", "tell us about", "why do you", "why are you", "anything else"})
	v.SetDefault("classifier.cover_keywords", []string{"cover letter"})
	v.SetDefault("classifier.consent_keywords", []string{"agree", "consent", "acknowledge", "terms", "privacy policy", "authorize", "certify", "confirm that"})
	v.SetDefault("classifier.language_keywords", []string{"proficiency", "language level", "fluency"})
	v.SetDefault("classifier.skill_keywords", []string{"skill level", "rate your", "level of expertise", "how proficient"})
	v.SetDefault("classifier.known_countries", defaultKnownCountries)
	v.SetDefault("classifier.country_option_sample", 20)
	v.SetDefault("classifier.country_option_hits", 3)

	v.SetDefault("answers.enabled", false)
	v.SetDefault("answers.timeout", 30*time.Second)
	v.SetDefault("answers.max_retry_time", 90*time.Second)
	v.SetDefault("answers.requests_per_min", 20)

	v.SetDefault("cache.fuzzy_floor", 0.7)

	v.SetDefault("profile.country", "United States")
	v.SetDefault("profile.city", "New York")
	v.SetDefault("profile.experience_years", "3")
}

// defaultKnownCountries is intentionally short: it only needs enough coverage
// for the density heuristic, not an exhaustive ISO list.
var defaultKnownCountries = []string{
	"united states", "united kingdom", "canada", "australia", "germany",
	"france", "spain", "italy", "netherlands", "sweden", "norway", "denmark",
	"poland", "portugal", "ireland", "switzerland", "austria", "belgium",
	"brazil", "mexico", "argentina", "india", "china", "japan", "singapore",
	"south korea", "new zealand", "south africa", "israel", "ukraine",
	"czech republic", "romania", "hungary", "finland", "greece", "turkey",
}
