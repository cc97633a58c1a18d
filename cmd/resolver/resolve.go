package main

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

const closeTimeout = 10 * time.Second

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <url>",
		Short: "Resolves one URL and prints the JSON envelope",
		Long: `Resolves a single URL with the configured registry and adapters and prints
the same envelope the HTTP service returns. Exits 1 when resolution fails.`,
		Args: cobra.ExactArgs(1),
		RunE: runResolveCommand,
	}
}

func runResolveCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if cerr := appInstance.Close(ctx); cerr != nil {
			zap.L().Warn("failed to close application", zap.Error(cerr))
		}
	}()

	outcome := appInstance.Resolve(cmd.Context(), args[0])
	_, env := resolver.Assemble(outcome)

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return err
	}
	if !outcome.Success {
		return errResolutionFailed
	}
	return nil
}
