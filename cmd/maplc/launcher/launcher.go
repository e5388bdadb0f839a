package launcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-map-lightclient/flags"
	"github.com/rony4d/go-map-lightclient/integration"
	"github.com/rony4d/go-map-lightclient/lightclient"
	"github.com/rony4d/go-map-lightclient/log"
	"github.com/rony4d/go-map-lightclient/mcs"
	"github.com/rony4d/go-map-lightclient/store"
)

var (
	app    = flags.NewApp("maplc", "MAP relay chain light client")
	logger = log.New("launcher")
)

func init() {
	app.Commands = []cli.Command{
		initCommand,
		advanceCommand,
		verifyCommand,
		statusCommand,
		fakenetCommand,
		dumpConfigCommand,
	}
	app.Action = func(ctx *cli.Context) error {
		return cli.ShowAppHelp(ctx)
	}
}

// Launch runs the light client CLI.
func Launch(args []string) error {
	return app.Run(args)
}

// session is what a command needs to work on a persisted client.
type session struct {
	cfg    Config
	preset integration.PresetConfig
	store  *store.Store
	lc     *lightclient.MapLightClient
	minter *mcs.LedgerMinter
}

// setup builds the config and configures logging.
func setup(ctx *cli.Context) (Config, error) {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return cfg, err
	}
	if err := log.Setup(cfg.LogConfig()); err != nil {
		return cfg, fmt.Errorf("logging: %w", err)
	}
	if cfg.Metrics.Enable && !metrics.Enabled {
		logger.Warn("Metrics requested in config only, pass --metrics on the command line to collect them")
	}
	logger.WithFields(logrus.Fields{
		"name":    cfg.Node.Name,
		"datadir": cfg.Node.DataDir,
		"network": cfg.Chain.Network,
	}).Debug("Configuration loaded")
	return cfg, nil
}

// openSession opens the store and restores the client from it.
func openSession(ctx *cli.Context) (*session, error) {
	cfg, err := setup(ctx)
	if err != nil {
		return nil, err
	}
	preset, err := cfg.DBPreset()
	if err != nil {
		return nil, err
	}
	ccfg, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}
	s, err := integration.MakeStore(cfg.Node.DataDir, preset)
	if err != nil {
		return nil, err
	}
	minter := new(mcs.LedgerMinter)
	lc, err := integration.OpenClient(s, ccfg, minter)
	if err != nil {
		s.Close()
		return nil, err
	}
	return &session{cfg: cfg, preset: preset, store: s, lc: lc, minter: minter}, nil
}

func (r *session) close() {
	if r.preset.EnableMetrics {
		reportMetrics()
	}
	r.lc.Close()
	if err := r.store.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close database")
	}
}

// reportMetrics logs the light-client meters of this run.
func reportMetrics() {
	if !metrics.Enabled {
		return
	}
	var names []string
	all := map[string]interface{}{}
	metrics.DefaultRegistry.Each(func(name string, m interface{}) {
		if strings.HasPrefix(name, "maplc/") {
			names = append(names, name)
			all[name] = m
		}
	})
	sort.Strings(names)
	for _, name := range names {
		switch m := all[name].(type) {
		case metrics.Meter:
			logger.WithField("count", m.Count()).Info(name)
		case metrics.Timer:
			logger.WithFields(logrus.Fields{
				"count": m.Count(),
				"mean":  m.Mean(),
			}).Info(name)
		}
	}
}
