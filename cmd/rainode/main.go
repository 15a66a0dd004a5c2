// Command rainode is the node's CLI entrypoint: run as a daemon,
// generate a keypair, or sign an arbitrary hash with an existing key.
// Adapted from the teacher's cmd/synnergy/main.go cobra wiring
// (rootCmd.AddCommand(...)) into the single-root, flag-driven surface
// spec.md §6 names.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/raicore/raicore/app"
	"github.com/raicore/raicore/core"
	"github.com/raicore/raicore/network"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		daemon    bool
		keyFile   string
		dataPath  string
		listen    string
		keyCreate bool
		createTo  string
		sign      bool
		signKey   string
		signHash  string
	)

	root := &cobra.Command{
		Use:     "rainode",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case keyCreate:
				return runKeyCreate(createTo)
			case sign:
				if signKey == "" {
					signKey = keyFile
				}
				return runSign(signKey, signHash)
			case daemon:
				return runDaemon(keyFile, dataPath, listen)
			default:
				return cmd.Help()
			}
		},
		SilenceUsage: true,
	}

	root.Flags().BoolVar(&daemon, "daemon", false, "run the node as a long-lived daemon")
	root.Flags().StringVar(&keyFile, "key", "", "path to the node's Ed25519 private key file")
	root.Flags().StringVar(&dataPath, "data_path", "", "ledger data directory")
	root.Flags().StringVar(&listen, "listen", "/ip4/0.0.0.0/tcp/0", "libp2p listen multiaddr for --daemon")
	root.Flags().BoolVar(&keyCreate, "key_create", false, "generate a new Ed25519 keypair")
	root.Flags().StringVar(&createTo, "file", "", "destination file for --key_create")
	root.Flags().BoolVar(&sign, "sign", false, "sign a hash with an existing key")
	root.Flags().StringVar(&signKey, "sign-key", "", "path to the Ed25519 private key file used by --sign (defaults to --key)")
	root.Flags().StringVar(&signHash, "hash", "", "hex-encoded 32-byte hash to sign")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: 1\n", err)
		return 1
	}
	return 0
}

func runKeyCreate(file string) error {
	if file == "" {
		return fmt.Errorf("--key_create requires --file")
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if err := os.WriteFile(file, []byte(hex.EncodeToString(priv)), 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	fmt.Printf("wrote key to %s\n", file)
	return nil
}

func runSign(keyFile, hashHex string) error {
	if keyFile == "" || hashHex == "" {
		return fmt.Errorf("--sign requires --key and --hash")
	}
	priv, err := loadPrivateKey(keyFile)
	if err != nil {
		return err
	}
	hashBytes, err := hex.DecodeString(hashHex)
	if err != nil {
		return fmt.Errorf("decode hash: %w", err)
	}
	sig := ed25519.Sign(priv, hashBytes)
	fmt.Println(hex.EncodeToString(sig))
	return nil
}

// ed25519Signer adapts a locally-held private key to core.Signer, the
// shape Rewarder needs to produce and sign its own account's blocks.
type ed25519Signer struct {
	priv ed25519.PrivateKey
}

func (s ed25519Signer) PublicKey() ed25519.PublicKey { return s.priv.Public().(ed25519.PublicKey) }

func (s ed25519Signer) Sign(message []byte) core.Signature {
	sig := ed25519.Sign(s.priv, message)
	var out core.Signature
	copy(out[:], sig)
	return out
}

func runDaemon(keyFile, dataPath, listen string) error {
	if keyFile == "" {
		return fmt.Errorf("--daemon requires --key")
	}
	if dataPath == "" {
		return fmt.Errorf("--daemon requires --data_path")
	}
	priv, err := loadPrivateKey(keyFile)
	if err != nil {
		return err
	}
	var account core.Account
	copy(account[:], priv.Public().(ed25519.PublicKey))

	params := core.TestNetworkParameters
	genesis, err := params.GenesisTxBlock()
	if err != nil {
		return fmt.Errorf("build genesis block: %w", err)
	}
	ledger, err := core.OpenLedger(core.LedgerConfig{
		DataPath:   dataPath,
		Genesis:    genesis,
		Parameters: params,
	})
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	logrus.WithField("account", hex.EncodeToString(priv.Public().(ed25519.PublicKey))).
		Info("rainode daemon starting")

	node, err := network.NewNode(network.Config{ListenAddr: listen, DiscoveryTag: "rainode", Network: params.Network})
	if err != nil {
		return fmt.Errorf("start network node: %w", err)
	}
	defer node.Close()

	var processor *core.BlockProcessor
	gaps := core.NewGapCache(func(b core.Block) { processor.Resubmit(b) })
	queries := core.NewBlockQueries(node)
	processor = core.NewBlockProcessor(ledger, gaps, queries, params)

	weights := core.NewWeightTable()
	if err := ledger.View(func(tx *core.Tx) error {
		info, infoErr := tx.AccountInfo(account)
		if infoErr != nil {
			return infoErr
		}
		head, headErr := tx.Block(info.HeadHash)
		if headErr != nil {
			return headErr
		}
		weights.Set(account, head.Balance())
		return nil
	}); err != nil {
		return fmt.Errorf("seed representative weight: %w", err)
	}
	elections := core.NewElections(ledger, weights)
	syncer := core.NewSyncer(processor, queries, ledger)
	rewarder := core.NewRewarder(ledger, processor, core.RewarderConfig{
		Signer:            ed25519Signer{priv: priv},
		DailyForwardTimes: 10,
		MinReceiveAmount:  core.NewBalance(0),
		SendInterval:      time.Minute,
		Params:            params,
	})
	subs := app.NewSubscriptions()

	// §2's primary data flow: appended/confirmed blocks fan out to the
	// Syncer (chain walk-forward), the Rewarder (own-account
	// republish/receive), and app subscribers; a detected fork is handed
	// to Elections for adjudication; an election's winner is fed back
	// into the processor via ConfirmWinner, rolling back a superseded
	// candidate if needed.
	processor.BlockObserver = func(result core.BlockProcessResult, b core.Block) {
		subs.OnBlockObserver(result, b)
		syncer.ProcessorCallback(result, b)
		if result.Error == nil {
			rewarder.Confirmed(b)
			rewarder.ReceivedIncoming(b)
			syncer.SyncRelated(b)
		}
	}
	processor.ForkObserver = func(fromLocal bool, first, second core.Block) {
		subs.OnForkObserver(fromLocal, first, second)
		elections.Add(first)
		elections.Add(second)
	}
	elections.ConfirmObserver = func(acct core.Account, height uint64, winner core.Block) {
		processor.ConfirmWinner(acct, height, winner)
		subs.OnConfirmObserver(acct, height, winner)
	}
	elections.ConflictObserver = func(acct core.Account, height, heightOther uint64, first, second core.Block) {
		logrus.WithFields(logrus.Fields{"account": acct.Hex(), "height": height}).
			Warn("representative conflict detected")
	}

	go gaps.Run()
	go queries.Run()
	go processor.Run()
	go elections.Run()
	go rewarder.Run()

	logrus.Info("rainode daemon running, ctrl-c to stop")
	select {}
}

func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	decoded, err := hex.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key file has wrong length: %d", len(decoded))
	}
	return ed25519.PrivateKey(decoded), nil
}
