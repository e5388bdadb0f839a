package launcher

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-map-lightclient/integration"
	"github.com/rony4d/go-map-lightclient/log"
	"github.com/rony4d/go-map-lightclient/mapchain"
	"github.com/rony4d/go-map-lightclient/mcs"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Config aggregates everything the launcher needs.
type Config struct {
	Node    NodeConfig
	Chain   ChainConfig
	Store   StoreConfig
	Metrics MetricsConfig
}

type NodeConfig struct {
	DataDir string
	Name    string
	Logging LoggingConfig
}

type LoggingConfig struct {
	Verbosity int
	Format    string
	Color     bool
	File      string `toml:",omitempty"`
	SentryDSN string `toml:",omitempty"`
}

// ChainConfig selects the followed network. Zero epoch values keep the
// network's defaults.
type ChainConfig struct {
	Network      string
	EpochSize    uint64 `toml:",omitempty"`
	MaxRecords   uint64 `toml:",omitempty"`
	Genesis      string `toml:",omitempty"`
	MCSContract  string `toml:",omitempty"`
	LocalChainID uint64 `toml:",omitempty"`
	// Tokens maps the toChainToken of a transfer to a local token id.
	Tokens map[string]string `toml:",omitempty"`
}

type StoreConfig struct {
	Preset  string
	CacheMB int `toml:",omitempty"`
	Handles int `toml:",omitempty"`
}

type MetricsConfig struct {
	Enable bool
}

func defaultConfig() Config {
	d := DefaultConfig()
	return Config{
		Node: NodeConfig{
			DataDir: filepath.Join(GuessHomeDir(), d.Node.DataDir),
			Name:    d.Node.Name,
			Logging: LoggingConfig{
				Verbosity: d.Logging.Verbosity,
				Format:    d.Logging.Format,
				Color:     d.Logging.Color,
			},
		},
		Chain: ChainConfig{
			Network: d.Chain.Network,
			Tokens:  map[string]string{},
		},
		Store: StoreConfig{
			Preset: d.Storage.Preset,
		},
		Metrics: MetricsConfig{
			Enable: d.Metrics.Enable,
		},
	}
}

// MakeAllConfigs merges defaults, config-file values and CLI overrides into a
// single config struct. Flags are looked up on the command and on the app.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()
	f := flagReader{ctx}

	if file := f.String("config"); file != "" {
		if err := loadConfigFile(resolvePath(file), &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}

	applyCLIOverrides(f, &cfg)

	if _, err := cfg.Rules(); err != nil {
		return cfg, err
	}
	if _, err := cfg.DBPreset(); err != nil {
		return cfg, err
	}
	if err := ensureDir(cfg.Node.DataDir); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// flagReader reads a flag from the command context first and from the app
// context otherwise, so global flags work on either side of the command name.
type flagReader struct {
	ctx *cli.Context
}

func (f flagReader) IsSet(name string) bool {
	return f.ctx.IsSet(name) || f.ctx.GlobalIsSet(name)
}

func (f flagReader) String(name string) string {
	if f.ctx.IsSet(name) {
		return f.ctx.String(name)
	}
	if f.ctx.GlobalIsSet(name) {
		return f.ctx.GlobalString(name)
	}
	if v := f.ctx.String(name); v != "" {
		return v
	}
	return f.ctx.GlobalString(name)
}

func (f flagReader) Int(name string) int {
	if f.ctx.IsSet(name) {
		return f.ctx.Int(name)
	}
	return f.ctx.GlobalInt(name)
}

func (f flagReader) Uint64(name string) uint64 {
	if f.ctx.IsSet(name) {
		return f.ctx.Uint64(name)
	}
	return f.ctx.GlobalUint64(name)
}

func (f flagReader) Bool(name string) bool {
	return f.ctx.Bool(name) || f.ctx.GlobalBool(name)
}

func applyCLIOverrides(f flagReader, cfg *Config) {
	if f.IsSet("datadir") {
		cfg.Node.DataDir = resolvePath(f.String("datadir"))
	}
	if f.IsSet("identity") {
		cfg.Node.Name = f.String("identity")
	}

	if f.IsSet("log.format") {
		cfg.Node.Logging.Format = f.String("log.format")
	}
	if f.IsSet("log.verbosity") {
		cfg.Node.Logging.Verbosity = f.Int("log.verbosity")
	}
	if f.IsSet("log.color") {
		cfg.Node.Logging.Color = f.Bool("log.color")
	}
	if f.IsSet("log.file") {
		cfg.Node.Logging.File = resolvePath(f.String("log.file"))
	}
	if f.IsSet("log.sentry") {
		cfg.Node.Logging.SentryDSN = f.String("log.sentry")
	}
	if f.IsSet("metrics") {
		cfg.Metrics.Enable = f.Bool("metrics")
	}

	if f.IsSet("network") {
		cfg.Chain.Network = f.String("network")
	}
	if f.IsSet("epochsize") {
		cfg.Chain.EpochSize = f.Uint64("epochsize")
	}
	if f.IsSet("maxrecords") {
		cfg.Chain.MaxRecords = f.Uint64("maxrecords")
	}
	if f.IsSet("genesis") {
		cfg.Chain.Genesis = resolvePath(f.String("genesis"))
	}
	if f.IsSet("mcs") {
		cfg.Chain.MCSContract = f.String("mcs")
	}
	if f.IsSet("localchain") {
		cfg.Chain.LocalChainID = f.Uint64("localchain")
	}
	if f.IsSet("tokens") {
		if cfg.Chain.Tokens == nil {
			cfg.Chain.Tokens = map[string]string{}
		}
		for _, pair := range splitCSV(f.String("tokens")) {
			if key, id, ok := strings.Cut(pair, "="); ok {
				cfg.Chain.Tokens[key] = id
			}
		}
	}

	if f.IsSet("db.preset") {
		cfg.Store.Preset = f.String("db.preset")
	}
	if f.IsSet("cache") {
		cfg.Store.CacheMB = f.Int("cache")
	}
	if f.IsSet("handles") {
		cfg.Store.Handles = f.Int("handles")
	}
}

// Rules resolves the network preset with the configured overrides applied.
func (c *Config) Rules() (mapchain.Rules, error) {
	rules, err := mapchain.RulesByName(c.Chain.Network)
	if err != nil {
		return rules, err
	}
	if c.Chain.EpochSize != 0 {
		rules.Epochs.EpochSize = c.Chain.EpochSize
	}
	if c.Chain.MaxRecords != 0 {
		rules.Epochs.MaxRecords = c.Chain.MaxRecords
	}
	if c.Chain.MCSContract != "" {
		if !common.IsHexAddress(c.Chain.MCSContract) {
			return rules, fmt.Errorf("invalid MCS contract address %q", c.Chain.MCSContract)
		}
		rules.MCSContract = common.HexToAddress(c.Chain.MCSContract)
	}
	return rules, rules.Validate()
}

// DBPreset returns the storage preset with the configured overrides applied.
func (c *Config) DBPreset() (integration.PresetConfig, error) {
	p, err := integration.GetPresetByName(c.Store.Preset)
	if err != nil {
		return p, err
	}
	integration.ApplyPreset(&p, integration.PresetConfig{
		CacheMB:       c.Store.CacheMB,
		Handles:       c.Store.Handles,
		EnableMetrics: p.EnableMetrics || c.Metrics.Enable,
	})
	return p, nil
}

// ClientConfig assembles the light-client parameters.
func (c *Config) ClientConfig() (integration.ClientConfig, error) {
	rules, err := c.Rules()
	if err != nil {
		return integration.ClientConfig{}, err
	}
	tokens := make(mcs.TokenTable, len(c.Chain.Tokens))
	for k, v := range c.Chain.Tokens {
		tokens[k] = v
	}
	return integration.ClientConfig{
		Rules:        rules,
		LocalChainID: c.Chain.LocalChainID,
		Tokens:       tokens,
	}, nil
}

// LogConfig maps the logging section onto the log package.
func (c *Config) LogConfig() log.Config {
	return log.Config{
		Verbosity: c.Node.Logging.Verbosity,
		Format:    c.Node.Logging.Format,
		Color:     c.Node.Logging.Color,
		File:      c.Node.Logging.File,
		SentryDSN: c.Node.Logging.SentryDSN,
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
