package launcher

import "github.com/rony4d/go-map-lightclient/mapchain"

// Defaults bundles the baseline configuration values the launcher uses before
// config files and flags override them.
type Defaults struct {
	Node    NodeDefaults
	Chain   ChainDefaults
	Storage StorageDefaults
	Logging LoggingDefaults
	Metrics MetricsDefaults
}

// NodeDefaults captures top-level instance settings.
type NodeDefaults struct {
	DataDir string // relative to the home directory
	Name    string // instance name shown in logs
}

// ChainDefaults selects the network followed when nothing else is configured.
type ChainDefaults struct {
	Network string
}

// StorageDefaults configures the client database.
type StorageDefaults struct {
	Preset string // one of the integration presets
}

type LoggingDefaults struct {
	Verbosity int    // geth-style 0..5
	Format    string // "text" or "json"
	Color     bool
}

type MetricsDefaults struct {
	Enable bool
}

// DefaultConfig returns the launcher defaults.
func DefaultConfig() Defaults {
	return Defaults{
		Node: NodeDefaults{
			DataDir: ".maplc",
			Name:    "maplc",
		},
		Chain: ChainDefaults{
			Network: mapchain.MainNetRules().Name,
		},
		Storage: StorageDefaults{
			Preset: "default",
		},
		Logging: LoggingDefaults{
			Verbosity: 3,
			Format:    "text",
		},
	}
}
