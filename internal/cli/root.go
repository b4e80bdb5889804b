// Package cli implements the nfchat command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SecurityRonin/nfchat-sub001/internal/config"
	"github.com/SecurityRonin/nfchat-sub001/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "nfchat",
	Short: "Behavioral state discovery for network flows",
	Long: `nfchat discovers behavioral states in network flow data by fitting a
Gaussian hidden Markov model over per-flow feature sequences, then explains
each state with a statistical profile, a plain-language narrative, and a
MITRE ATT&CK tactic suggestion.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
			level = flag.Value.String()
		}
		logging.Init(&logging.Config{
			Level:  logging.ParseLevel(level),
			Format: cfg.Logging.Format,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "config file (default "+config.ConfigFile()+")")

	cobra.OnInitialize(func() {
		if path, _ := rootCmd.PersistentFlags().GetString("config"); path != "" {
			viper.SetConfigFile(path)
		}
	})
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
