package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dsandbox/rewriter/config"
)

func newRewriteCommand() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "rewrite <host-class-name>...",
		Short: "Rewrite one or more host classes and write the resulting sandbox bytecode",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(cmd, args, outDir)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write rewritten .class files into")
	return cmd
}

func runRewrite(cmd *cobra.Command, hostNames []string, outDir string) error {
	f, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applySeverityOverride(f)
	sb, err := config.Build(f)
	if err != nil {
		return fmt.Errorf("build sandbox configuration: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	ctx := context.Background()
	for _, hostName := range hostNames {
		sandboxName := sb.Resolver.ResolveType(hostName)
		defined, err := sb.Loader.LoadSandboxClass(ctx, sandboxName)
		if err != nil {
			return fmt.Errorf("rewrite %s: %w", hostName, err)
		}
		if len(defined.Bytes) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (pinned, passthrough)\n", hostName, defined.SandboxName)
			continue
		}
		outPath := filepath.Join(outDir, defined.SandboxName+".class")
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(outPath, defined.Bytes, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d bytes)\n", hostName, outPath, len(defined.Bytes))
	}
	return nil
}
