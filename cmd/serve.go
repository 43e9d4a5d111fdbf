package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mentormatch/mentormatch/internal/logger"
	"github.com/mentormatch/mentormatch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the matching API over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "listen address (default :8000)")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func serve(cmd *cobra.Command) error {
	// A local .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return err
	}
	defer log.Sync() //nolint: errcheck

	config, err := getConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	service, pool, err := buildService(ctx, config, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	log.Info("starting matching service", zap.String("listen", config.Listen))
	return server.New(service, pool, log).Run(config.Listen)
}
