package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/AlexZinkM/linera-client/internal/api"
	"github.com/AlexZinkM/linera-client/internal/client"
	"github.com/AlexZinkM/linera-client/internal/config"
	"github.com/AlexZinkM/linera-client/internal/handler"
	"github.com/AlexZinkM/linera-client/internal/metrics"
	"github.com/AlexZinkM/linera-client/internal/model"
	"github.com/AlexZinkM/linera-client/internal/watch"
	"github.com/AlexZinkM/linera-client/linera"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Log CPU and memory usage of the client periodically",
	RunE: func(cmd *cobra.Command, args []string) error {
		metrics.RunLogger(cmd.Context(), config.GetMetricsInterval(), log)
		return nil
	},
}

var (
	deployPath     string
	deployArgument string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Publish a project's bytecode and create the application",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		desc, err := c.Deploy(cmd.Context(), deployPath, deployArgument)
		saveWallet(c)

		if errors.Is(err, model.ErrUncertain) {
			printJSON(desc)
			fmt.Fprintf(os.Stderr, "application %s was created but not confirmed; re-check it on chain %s\n", desc.ApplicationID, desc.ChainID)
			return err
		}
		if err != nil {
			return err
		}
		printJSON(desc)
		return nil
	},
}

var (
	watchAppID  string
	watchMirror bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream the events of an application",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		handle := func(_ context.Context, ev model.Event) error {
			printJSON(ev)
			return nil
		}
		if watchMirror {
			db, err := client.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseKey)
			if err != nil {
				return err
			}
			mirror := linera.MirrorHandler(db, cfg.SupabaseTable)
			handle = func(ctx context.Context, ev model.Event) error {
				if err := mirror(ctx, ev); err != nil {
					return err
				}
				printJSON(ev)
				return nil
			}
		}

		err = c.Watch(cmd.Context(), watchAppID, watch.Handler(handle))
		log.Info("watch stopped", zap.String("applicationId", watchAppID), zap.Uint64("cursor", c.Cursor(watchAppID)))
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              ":" + config.GetPort(),
			Handler:           api.SetupRouter(handler.NewLineraHandler(c, walletDir, log)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage wallet directories",
}

var walletNewCmd = &cobra.Command{
	Use:   "new DIR",
	Short: "Create a wallet and store it in DIR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if err := linera.ValidateWalletDir(dir); err == nil {
			return fmt.Errorf("%s already holds a wallet", dir)
		}

		c, err := linera.NewFromConfig(cfg, log)
		if err != nil {
			return err
		}
		w, err := c.CreateWallet()
		if err != nil {
			return err
		}

		password, err := config.ReadPassword("New wallet password: ")
		if err != nil {
			return err
		}
		defer clear(password)

		if err := linera.SaveWallet(dir, w, password); err != nil {
			return err
		}
		printJSON(model.GenerateResponse{Success: true, Message: "Wallet generated successfully", ID: w.ID, Owner: w.Owner})
		return nil
	},
}

var walletRekeyCmd = &cobra.Command{
	Use:   "rekey DIR",
	Short: "Change the password of the wallet in DIR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldPassword, err := config.ReadPassword("Current wallet password: ")
		if err != nil {
			return err
		}
		defer clear(oldPassword)

		newPassword, err := config.ReadPassword("New wallet password: ")
		if err != nil {
			return err
		}
		defer clear(newPassword)

		if err := linera.Rekey(args[0], oldPassword, newPassword); err != nil {
			return err
		}
		fmt.Println("Wallet password changed")
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployPath, "path", "", "project path holding the compiled contract and service")
	deployCmd.Flags().StringVar(&deployArgument, "json-argument", "", "JSON argument of the application")
	_ = deployCmd.MarkFlagRequired("path")

	watchCmd.Flags().StringVar(&watchAppID, "app-id", "", "application to watch")
	watchCmd.Flags().BoolVar(&watchMirror, "mirror", false, "mirror events into SUPABASE_TABLE")
	_ = watchCmd.MarkFlagRequired("app-id")

	walletCmd.AddCommand(walletNewCmd)
	walletCmd.AddCommand(walletRekeyCmd)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
