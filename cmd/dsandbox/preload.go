package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dsandbox/rewriter/config"
)

func newPreloadCommand() *cobra.Command {
	var manifest string
	cmd := &cobra.Command{
		Use:   "preload",
		Short: "Rewrite every class named in a manifest file into the bytecode cache",
		Long: "Reads one host class internal name per line from --manifest and rewrites " +
			"each into the bytecode cache, so a later run (or a shared external cache) " +
			"never pays the rewrite cost on first use.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreload(cmd, manifest)
		},
	}
	cmd.Flags().StringVarP(&manifest, "manifest", "m", "", "file listing one host class internal name per line")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func runPreload(cmd *cobra.Command, manifest string) error {
	names, err := readManifest(manifest)
	if err != nil {
		return err
	}

	f, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applySeverityOverride(f)
	sb, err := config.Build(f)
	if err != nil {
		return fmt.Errorf("build sandbox configuration: %w", err)
	}

	ctx := context.Background()
	var failed int
	for _, hostName := range names {
		sandboxName := sb.Resolver.ResolveType(hostName)
		if _, err := sb.Loader.LoadSandboxClass(ctx, sandboxName); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", hostName, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "preloaded %s\n", hostName)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d classes failed to preload", failed, len(names))
	}
	return nil
}

func readManifest(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}
