package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/consentd/internal/app"
	"github.com/dropDatabas3/consentd/internal/config"
	"github.com/dropDatabas3/consentd/internal/observability/logger"
)

// cli estado compartido entre subcomandos.
type cli struct {
	configPath string
	envFile    string
	cfg        *config.Config
}

func main() {
	c := &cli{}

	root := &cobra.Command{
		Use:           "consentd",
		Short:         "Núcleo de federación de identidades y consentimiento OAuth2",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.load()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", envOr("CONFIG_PATH", ""), "Archivo YAML de configuración (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Archivo .env a cargar si existe")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newAuditCmd(c),
		newVersionCmd(),
	)

	err := root.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// load carga .env, la config y el logger.
func (c *cli) load() error {
	if strings.TrimSpace(c.envFile) != "" {
		if err := godotenv.Load(c.envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("env file %s: %w", c.envFile, err)
		}
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	env := "dev"
	if strings.EqualFold(cfg.App.Env, "prod") {
		env = "prod"
	}
	logger.Init(logger.Config{
		Env:         env,
		Level:       cfg.Log.Level,
		ServiceName: "consentd",
		Version:     app.Version,
	})
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), app.Version)
		},
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
