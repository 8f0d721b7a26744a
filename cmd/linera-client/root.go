package main

import (
	"fmt"

	"github.com/AlexZinkM/linera-client/internal/config"
	"github.com/AlexZinkM/linera-client/internal/logger"
	"github.com/AlexZinkM/linera-client/linera"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	walletDir string

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "linera-client",
	Short: "Deploy and watch applications on a remote Linera node",
	Long: `linera-client talks to a remote Linera node without running the node locally.

It can:
  - report the resource usage of the client process
  - publish WASM bytecode and create an application on the wallet's chain
  - stream the events of an application, resuming after disconnects`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(); err != nil {
			return err
		}
		cfg = config.Get()

		l, err := logger.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		log = l

		if walletDir != "" {
			if err := linera.ValidateWalletDir(walletDir); err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&walletDir, "with-wallet", "", "wallet directory holding wallet.json and keystore.json")

	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(walletCmd)
}

// newClient builds a client for the configured node. With --with-wallet the
// stored wallet becomes active; otherwise an in-memory wallet is created.
func newClient() (*linera.Client, error) {
	c, err := linera.NewFromConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	if walletDir == "" {
		if _, err := c.CreateWallet(); err != nil {
			return nil, err
		}
		log.Warn("no wallet directory given, using a temporary wallet")
		return c, nil
	}

	if err := config.PromptForPassword(); err != nil {
		return nil, err
	}
	passwordBytes, err := config.GetWalletPasswordBytes()
	if err != nil {
		return nil, err
	}
	defer clear(passwordBytes)

	w, err := linera.LoadWallet(walletDir, passwordBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	if err := c.UseWallet(w); err != nil {
		return nil, err
	}
	log.Info("wallet loaded", zap.Object("wallet", w))
	return c, nil
}

// saveWallet writes the active wallet's chains back to the wallet directory.
func saveWallet(c *linera.Client) {
	if walletDir == "" {
		return
	}
	w, err := c.Wallet()
	if err != nil {
		return
	}
	passwordBytes, err := config.GetWalletPasswordBytes()
	if err != nil {
		log.Warn("wallet not saved", zap.Error(err))
		return
	}
	defer clear(passwordBytes)
	if err := linera.SaveWallet(walletDir, w, passwordBytes); err != nil {
		log.Warn("wallet not saved", zap.Error(err))
	}
}
