// Package config loads semstore settings from an optional TOML file and
// SEMSTORE_* environment variables over built-in defaults.
//
// Settings are read once by the CLI and passed by value into component
// constructors. There is no package-level configuration state.
package config

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/semstore/internal/conceptcache"
	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/lang"
	"github.com/roach88/semstore/internal/logger"
	"github.com/roach88/semstore/internal/store"
	"github.com/roach88/semstore/internal/updater"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// SEMSTORE_QUERY_MAX_SIZE for query.max_size.
const EnvPrefix = "SEMSTORE"

// Settings is the complete semstore configuration.
type Settings struct {
	Database   DatabaseSettings  `mapstructure:"database"`
	Store      StoreSettings     `mapstructure:"store"`
	Updates    UpdateSettings    `mapstructure:"updates"`
	Namespaces NamespaceSettings `mapstructure:"namespaces"`
	Query      QuerySettings     `mapstructure:"query"`
	Concepts   ConceptSettings   `mapstructure:"concepts"`
	Language   string            `mapstructure:"language"`
	Log        LogSettings       `mapstructure:"log"`
	Bus        BusSettings       `mapstructure:"bus"`
}

type DatabaseSettings struct {
	Path string `mapstructure:"path"`
}

type StoreSettings struct {
	IDRetention string `mapstructure:"id_retention"`
}

type UpdateSettings struct {
	EnableUpdateJobs      bool     `mapstructure:"enable_update_jobs"`
	DeclarationProperties []string `mapstructure:"declaration_properties"`
	PageSpecialProperties []string `mapstructure:"page_special_properties"`
}

// NamespaceSettings maps namespace numbers (as strings, a TOML table
// key restriction) to whether semantic processing is enabled.
type NamespaceSettings struct {
	Semantic map[string]bool `mapstructure:"semantic"`
}

type QuerySettings struct {
	MaxSize  int `mapstructure:"max_size"`
	MaxDepth int `mapstructure:"max_depth"`
	Features int `mapstructure:"features"`
}

type ConceptSettings struct {
	DelaySeconds int `mapstructure:"delay_seconds"`
}

type LogSettings struct {
	JSON    bool `mapstructure:"json"`
	Verbose bool `mapstructure:"verbose"`
}

type BusSettings struct {
	RedisAddr    string `mapstructure:"redis_addr"`
	RedisChannel string `mapstructure:"redis_channel"`
}

// SetDefaults configures the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "semstore.db")

	v.SetDefault("store.id_retention", string(store.RetainIfReferenced))

	v.SetDefault("updates.enable_update_jobs", true)
	v.SetDefault("updates.declaration_properties", []string{ir.PropType, ir.PropAllowsValue, ir.PropConversion, ir.PropAllowsList})
	v.SetDefault("updates.page_special_properties", []string{ir.PropModificationDate})

	v.SetDefault("namespaces.semantic", map[string]any{
		"0":   true,
		"2":   true,
		"14":  true,
		"102": true,
		"104": true,
		"108": true,
	})

	v.SetDefault("query.max_size", 12)
	v.SetDefault("query.max_depth", 4)
	v.SetDefault("query.features", int(ir.DefaultQueryFeatures))

	v.SetDefault("concepts.delay_seconds", 5)

	v.SetDefault("language", lang.Default)

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbose", false)

	v.SetDefault("bus.redis_addr", "")
	v.SetDefault("bus.redis_channel", "semstore-events")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the TOML file at path, when given, and returns validated
// settings.
func Load(path string) (Settings, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates the settings held by v.
func FromViper(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks every setting that has a restricted domain.
func (s Settings) Validate() error {
	if _, err := store.ParseIDRetention(s.Store.IDRetention); err != nil {
		return errors.Wrap(err, "store.id_retention")
	}
	if s.Query.MaxSize < 0 {
		return errors.Newf("query.max_size must be >= 0, got %d", s.Query.MaxSize)
	}
	if s.Query.MaxDepth < 0 {
		return errors.Newf("query.max_depth must be >= 0, got %d", s.Query.MaxDepth)
	}
	if s.Query.Features < 0 || s.Query.Features > int(allFeatures) {
		return errors.Newf("query.features must be within 0..%d, got %d", allFeatures, s.Query.Features)
	}
	if s.Concepts.DelaySeconds < 0 {
		return errors.Newf("concepts.delay_seconds must be >= 0, got %d", s.Concepts.DelaySeconds)
	}
	if _, ok := lang.Lookup(s.Language); !ok {
		return errors.WithHintf(errors.Newf("unknown language %q", s.Language),
			"supported: %s", strings.Join(lang.Codes(), ", "))
	}
	if _, err := s.SemanticNamespaces(); err != nil {
		return err
	}
	return nil
}

const allFeatures = ir.FeatureProperty | ir.FeatureCategory | ir.FeatureConcept |
	ir.FeatureNamespace | ir.FeatureConjunction | ir.FeatureDisjunction | ir.FeatureNegation

// SemanticNamespaces returns the namespaces with semantic processing.
func (s Settings) SemanticNamespaces() (map[ir.Namespace]bool, error) {
	out := make(map[ir.Namespace]bool, len(s.Namespaces.Semantic))
	for key, enabled := range s.Namespaces.Semantic {
		n, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, errors.Newf("namespaces.semantic: %q is not a namespace number", key)
		}
		out[ir.Namespace(n)] = enabled
	}
	return out, nil
}

// IDRetention returns the parsed ID retention policy.
func (s Settings) IDRetention() store.IDRetention {
	p, err := store.ParseIDRetention(s.Store.IDRetention)
	if err != nil {
		return store.RetainIfReferenced
	}
	return p
}

// DeclarationProperties returns the declaration-affecting properties.
func (s Settings) DeclarationProperties() []ir.Property {
	out := make([]ir.Property, 0, len(s.Updates.DeclarationProperties))
	for _, key := range s.Updates.DeclarationProperties {
		out = append(out, ir.NewProperty(key))
	}
	return out
}

// UpdaterConfig returns the update orchestrator settings.
func (s Settings) UpdaterConfig() updater.Config {
	// Validated settings always parse; nil falls back to the defaults.
	ns, _ := s.SemanticNamespaces()
	return updater.Config{
		EnableUpdateJobs:   s.Updates.EnableUpdateJobs,
		SemanticNamespaces: ns,
	}
}

// QueryLimits returns the concept hard-filter ceilings.
func (s Settings) QueryLimits() conceptcache.Limits {
	return conceptcache.Limits{
		MaxSize:  s.Query.MaxSize,
		MaxDepth: s.Query.MaxDepth,
		Features: ir.QueryFeature(s.Query.Features),
	}
}

// ConceptDelay returns the cancellation window of destructive runs.
func (s Settings) ConceptDelay() time.Duration {
	return time.Duration(s.Concepts.DelaySeconds) * time.Second
}

// LanguageTable returns the configured locale table.
func (s Settings) LanguageTable() *lang.Table {
	if t, ok := lang.Lookup(s.Language); ok {
		return t
	}
	return lang.MustLookup(lang.Default)
}

// EnabledNamespaces lists the semantic namespaces in ascending order.
func (s Settings) EnabledNamespaces() []ir.Namespace {
	m, err := s.SemanticNamespaces()
	if err != nil {
		return nil
	}
	out := []ir.Namespace{}
	for ns, on := range m {
		if on {
			out = append(out, ns)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LoggerOptions returns the logger construction options.
func (s Settings) LoggerOptions() logger.Options {
	return logger.Options{JSON: s.Log.JSON, Verbose: s.Log.Verbose}
}
