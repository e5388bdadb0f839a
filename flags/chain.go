package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// ChainFlags select the MAP network followed and the MCS binding.
func ChainFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Usage: "MAP network to follow (main|makalu|fake)",
			Value: "main",
		},
		cli.Uint64Flag{
			Name:  "epochsize",
			Usage: "Override the number of blocks per epoch",
		},
		cli.Uint64Flag{
			Name:  "maxrecords",
			Usage: "Override the number of epoch records retained",
		},
		cli.StringFlag{
			Name:  "genesis",
			Usage: "Genesis file holding the trusted header height and validator set",
		},
		cli.StringFlag{
			Name:  "mcs",
			Usage: "Address of the MAP Cross-chain Service contract",
		},
		cli.Uint64Flag{
			Name:  "localchain",
			Usage: "Chain id transfers must target (0 disables the check)",
		},
		cli.StringFlag{
			Name:  "tokens",
			Usage: "Comma-separated toChainToken=tokenId pairs added to the token table",
		},
	}
}

// StoreFlags tune the client database.
func StoreFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "db.preset",
			Usage: "Database preset (default|lite|full|memory)",
			Value: "default",
		},
		cli.IntFlag{
			Name:  "cache",
			Usage: "Megabytes of memory allocated to the database cache",
		},
		cli.IntFlag{
			Name:  "handles",
			Usage: "Maximum number of open database files",
		},
	}
}

// AllFlags is the global flag set of the launcher.
func AllFlags() []cli.Flag {
	var all []cli.Flag
	all = append(all, CommonFlags()...)
	all = append(all, ChainFlags()...)
	all = append(all, StoreFlags()...)
	return all
}
