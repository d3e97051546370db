package main

import (
	"fmt"
	"os"

	"github.com/mohammad-safakhou/tosclarity/config"
	"github.com/mohammad-safakhou/tosclarity/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := rootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "tosclarity",
		Short:         "Terms-of-service summary store and API",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches ./config and .)")

	root.AddCommand(serveCMD(&cfgPath), migrateCMD(&cfgPath), ingestCMD(&cfgPath))
	return root
}

// bootstrap loads configuration and builds the logger every command shares.
func bootstrap(cfgPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}
