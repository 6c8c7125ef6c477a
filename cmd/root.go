// Package cmd holds the faceattend command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camden-git/faceattend/config"
)

// commandContext loads configuration and the logger once per invocation.
type commandContext struct {
	envFile *string

	once   sync.Once
	cfg    config.Config
	logger *zap.Logger
	err    error
}

func (c *commandContext) ensure() (config.Config, *zap.Logger, error) {
	c.once.Do(func() {
		envErr := godotenv.Load(*c.envFile)

		cfg, err := config.LoadConfig()
		if err != nil {
			c.err = fmt.Errorf("load config: %w", err)
			return
		}

		logger, err := newLogger(cfg.LogDevelopment)
		if err != nil {
			c.err = fmt.Errorf("init logger: %w", err)
			return
		}
		if envErr != nil {
			logger.Debug("no env file loaded", zap.String("path", *c.envFile), zap.Error(envErr))
		}
		for _, w := range cfg.Warnings {
			logger.Warn("configuration value ignored", zap.String("detail", w))
		}

		c.cfg = cfg
		c.logger = logger
	})
	return c.cfg, c.logger, c.err
}

func (c *commandContext) sync() {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func NewRootCommand() *cobra.Command {
	var envFile string
	ctx := &commandContext{envFile: &envFile}

	rootCmd := &cobra.Command{
		Use:           "faceattend",
		Short:         "Face recognition attendance tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, _, err := ctx.ensure()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newGalleryCommand(ctx))
	rootCmd.AddCommand(newEnrollCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute(ctx context.Context) {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
