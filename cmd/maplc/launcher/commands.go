package launcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-map-lightclient/inter"
	"github.com/rony4d/go-map-lightclient/inter/validatorpk"
	"github.com/rony4d/go-map-lightclient/integration"
	"github.com/rony4d/go-map-lightclient/lightclient"
	"github.com/rony4d/go-map-lightclient/mapchain"
	"github.com/rony4d/go-map-lightclient/mapchain/fakenet"
	"github.com/rony4d/go-map-lightclient/mapchain/genesis"
	"github.com/rony4d/go-map-lightclient/mcs"
)

var (
	headerFlag = cli.StringFlag{
		Name:  "header",
		Usage: "Hex of the RLP-encoded epoch boundary header",
	}
	aggPKFlag = cli.StringFlag{
		Name:  "aggpk",
		Usage: "Hex of the aggregated G2 public key of the header signers",
	}
	batchFlag = cli.StringFlag{
		Name:  "batch",
		Usage: "JSON file holding a list of {header, aggPk} submissions",
	}
	proofFlag = cli.StringFlag{
		Name:  "proof",
		Usage: "JSON file holding a receipt proof",
	}
	logIndexFlag = cli.Uint64Flag{
		Name:  "log-index",
		Usage: "Index of the transfer log inside the proven receipt",
	}
	outFlag = cli.StringFlag{
		Name:  "out",
		Usage: "Output directory of the generated fake network",
		Value: "fakenet",
	}
	validatorsFlag = cli.IntFlag{
		Name:  "validators",
		Usage: "Number of validators per epoch",
		Value: 4,
	}
	epochsFlag = cli.IntFlag{
		Name:  "epochs",
		Usage: "Number of epoch boundary headers to generate",
		Value: 3,
	}
)

var (
	initCommand = cli.Command{
		Name:      "init",
		Usage:     "Initialize the light client from a genesis file",
		ArgsUsage: "[<genesis.json>]",
		Action:    initClient,
		Description: `
The genesis file fixes the trusted header height and the validator set that
signs the next epoch boundary header. It is read from the argument, from
--genesis, or from Chain.Genesis in the config file, in that order.`,
	}
	advanceCommand = cli.Command{
		Name:   "advance",
		Usage:  "Verify epoch boundary headers and move the client forward",
		Action: advanceHeaders,
		Flags:  []cli.Flag{headerFlag, aggPKFlag, batchFlag},
	}
	verifyCommand = cli.Command{
		Name:   "verify",
		Usage:  "Verify a receipt proof and release the transfer it carries",
		Action: verifyTransfer,
		Flags:  []cli.Flag{proofFlag, logIndexFlag},
	}
	statusCommand = cli.Command{
		Name:   "status",
		Usage:  "Print the client state summary",
		Action: printStatus,
	}
	fakenetCommand = cli.Command{
		Name:   "fakenet",
		Usage:  "Generate a fake network: genesis, boundary headers and a transfer proof",
		Action: generateFakenet,
		Flags:  []cli.Flag{outFlag, validatorsFlag, epochsFlag},
	}
	dumpConfigCommand = cli.Command{
		Name:   "dumpconfig",
		Usage:  "Show configuration values",
		Action: dumpConfig,
	}
)

// HeaderSubmission is one entry of an advance batch file.
type HeaderSubmission struct {
	Header hexutil.Bytes        `json:"header"`
	AggPK  validatorpk.G2PubKey `json:"aggPk"`
}

func initClient(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	path := cfg.Chain.Genesis
	if ctx.NArg() > 0 {
		path = resolvePath(ctx.Args().First())
	}
	if path == "" {
		return errors.New("no genesis file given")
	}
	g, err := genesis.Load(path)
	if err != nil {
		return err
	}
	preset, err := cfg.DBPreset()
	if err != nil {
		return err
	}
	ccfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}
	s, err := integration.MakeStore(cfg.Node.DataDir, preset)
	if err != nil {
		return err
	}
	defer s.Close()

	lc, err := integration.InitClient(s, g, ccfg, nil)
	if err != nil {
		return err
	}
	defer lc.Close()
	return printJSON(ctx, lc.Status())
}

func advanceHeaders(ctx *cli.Context) error {
	var batch []HeaderSubmission
	switch {
	case ctx.IsSet(batchFlag.Name):
		if err := readJSON(resolvePath(ctx.String(batchFlag.Name)), &batch); err != nil {
			return err
		}
	case ctx.IsSet(headerFlag.Name):
		raw, err := hexutil.Decode(ctx.String(headerFlag.Name))
		if err != nil {
			return fmt.Errorf("header: %w", err)
		}
		aggPK, err := validatorpk.G2FromString(ctx.String(aggPKFlag.Name))
		if err != nil {
			return fmt.Errorf("aggpk: %w", err)
		}
		batch = append(batch, HeaderSubmission{Header: raw, AggPK: aggPK})
	default:
		return fmt.Errorf("one of --%s or --%s is required", headerFlag.Name, batchFlag.Name)
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	events := make(chan lightclient.HeaderAdvancedEvent, len(batch))
	sub := s.lc.SubscribeHeaderAdvanced(events)
	defer sub.Unsubscribe()

	for i, h := range batch {
		if err := s.lc.AdvanceHeader(h.Header, h.AggPK); err != nil {
			return fmt.Errorf("submission %d: %w", i, err)
		}
		ev := <-events
		logger.WithFields(logrus.Fields{
			"height": ev.Height,
			"hash":   ev.Hash,
			"epoch":  ev.NextEpoch,
		}).Info("Header accepted")
	}
	return printJSON(ctx, s.lc.Status())
}

// transferResult is what verify prints.
type transferResult struct {
	Event    *mcs.TransferEvent `json:"event"`
	Released []mcs.Transfer     `json:"released"`
}

func verifyTransfer(ctx *cli.Context) error {
	if !ctx.IsSet(proofFlag.Name) {
		return fmt.Errorf("--%s is required", proofFlag.Name)
	}
	var p inter.ReceiptProof
	if err := readJSON(resolvePath(ctx.String(proofFlag.Name)), &p); err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	rules, err := s.cfg.Rules()
	if err != nil {
		return err
	}
	if rules.MCSContract == (common.Address{}) {
		return errors.New("no MCS contract configured, set --mcs or Chain.MCSContract")
	}

	ev, err := s.lc.VerifyTransfer(&p, ctx.Uint64(logIndexFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(ctx, transferResult{Event: ev, Released: s.minter.Transfers()})
}

func printStatus(ctx *cli.Context) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	return printJSON(ctx, s.lc.Status())
}

// Names of the files written by the fakenet command.
const (
	fakenetGenesisFile = "genesis.json"
	fakenetHeadersFile = "headers.json"
	fakenetProofFile   = "transfer.json"
	fakenetConfigFile  = "config.toml"
	fakenetToken       = "fake-token-mcs"
)

func generateFakenet(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	validators := ctx.Int(validatorsFlag.Name)
	epochs := ctx.Int(epochsFlag.Name)
	if validators <= 0 || epochs <= 0 {
		return errors.New("validators and epochs must be positive")
	}
	out := resolvePath(ctx.String(outFlag.Name))
	if err := ensureDir(out); err != nil {
		return err
	}

	rules := mapchain.FakeNetRules()
	if cfg.Chain.EpochSize != 0 {
		rules.Epochs.EpochSize = cfg.Chain.EpochSize
	}
	if cfg.Chain.MaxRecords != 0 {
		rules.Epochs.MaxRecords = cfg.Chain.MaxRecords
	}

	net := fakenet.NewNetwork(rules.Epochs.EpochSize, 0, validators, 1)
	height, rec := net.Genesis()
	g := genesis.New(rules, height, rec)
	if err := g.Save(filepath.Join(out, fakenetGenesisFile)); err != nil {
		return err
	}

	// Rotate one validator per epoch so every transition both adds and removes.
	batch := make([]HeaderSubmission, 0, epochs)
	for i := 0; i < epochs; i++ {
		sealed, err := net.Advance(1, []int{0})
		if err != nil {
			return err
		}
		batch = append(batch, HeaderSubmission{Header: sealed.Raw, AggPK: sealed.AggPK})
	}
	if err := writeJSON(filepath.Join(out, fakenetHeadersFile), batch); err != nil {
		return err
	}

	ev := &mcs.TransferEvent{
		FromChain:    rules.NetworkID,
		ToChain:      cfg.Chain.LocalChainID,
		OrderID:      common.BigToHash(big.NewInt(int64(net.Height) + 1)),
		Token:        common.HexToAddress("0x000000000000000000000000000000000000fa7e"),
		From:         fakenet.NewValidator(0).Address(),
		To:           []byte("fakenet.recipient"),
		Amount:       big.NewInt(1e18),
		ToChainToken: []byte(fakenetToken),
	}
	receipt, err := fakenet.TransferReceipt(rules.MCSContract, ev)
	if err != nil {
		return err
	}
	// The first block after the last boundary belongs to an epoch the client
	// keeps once the batch is applied.
	receipts := []*inter.ReceiptData{fakenet.FillerReceipt(0), receipt}
	p, err := net.ProveReceipt(net.Height+1, receipts, 1)
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(out, fakenetProofFile), p); err != nil {
		return err
	}

	fcfg := defaultConfig()
	fcfg.Node.DataDir = filepath.Join(out, "data")
	fcfg.Node.Name = "fakenet"
	fcfg.Chain.Network = rules.Name
	fcfg.Chain.EpochSize = cfg.Chain.EpochSize
	fcfg.Chain.MaxRecords = cfg.Chain.MaxRecords
	fcfg.Chain.Genesis = filepath.Join(out, fakenetGenesisFile)
	fcfg.Chain.LocalChainID = cfg.Chain.LocalChainID
	fcfg.Chain.Tokens = map[string]string{fakenetToken: "fake_token"}
	if err := writeTOML(filepath.Join(out, fakenetConfigFile), &fcfg); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"dir":        out,
		"validators": validators,
		"epochs":     epochs,
		"height":     net.Height,
	}).Info("Fake network generated")
	fmt.Fprintf(ctx.App.Writer, "maplc --config %s init\n", filepath.Join(out, fakenetConfigFile))
	fmt.Fprintf(ctx.App.Writer, "maplc --config %s advance --batch %s\n", filepath.Join(out, fakenetConfigFile), filepath.Join(out, fakenetHeadersFile))
	fmt.Fprintf(ctx.App.Writer, "maplc --config %s verify --proof %s --log-index 0\n", filepath.Join(out, fakenetConfigFile), filepath.Join(out, fakenetProofFile))
	return nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(out)
	return err
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeTOML(path string, cfg *Config) error {
	data, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printJSON(ctx *cli.Context, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.App.Writer, string(data))
	return err
}
