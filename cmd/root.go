package cmd

import (
	"fmt"
	"os"

	"github.com/endorses/lippyguard/cmd/capture"
	"github.com/endorses/lippyguard/cmd/serve"
	"github.com/endorses/lippyguard/cmd/show"
	"github.com/endorses/lippyguard/internal/pkg/config"
	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/endorses/lippyguard/internal/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "lippyguard",
	Short:   "lippyguard captures traffic and flags attacks",
	Long:    fmt.Sprintf("lippyguard %s - Packet capture with post-capture anomaly detection\n\nCaptures frames for a fixed window, then flags SYN floods, UDP floods,\nport scans and Ping of Death.", version.Version),
	Version: version.Get().String(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Configure(logger.Options{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		})
	},
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func addSubCommandPalattes() {
	rootCmd.AddCommand(capture.CaptureCmd)
	rootCmd.AddCommand(serve.ServeCmd)
	rootCmd.AddCommand(show.ShowCmd)
	rootCmd.AddCommand(interfacesCmd)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Initialize structured logging
	logger.Initialize()

	addSubCommandPalattes()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/lippyguard/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	config.SetDefaults(viper.GetViper())
	config.ConfigureEnv(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Priority order for config files:
		// 1. ~/.config/lippyguard/config.yaml
		// 2. ~/.lippyguard.yaml
		viper.AddConfigPath(home + "/.config/lippyguard")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
		if _, err := os.Stat(home + "/.config/lippyguard/config.yaml"); err != nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".lippyguard")
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
