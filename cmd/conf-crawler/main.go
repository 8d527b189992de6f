// Package main provides the conf-crawler CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/conf-crawler/pkg/config"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	// A missing .env file is normal
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if !exitErr.reported {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return exitErr.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	// Flag parsing and argument validation errors come straight from cobra
	return ExitUsage
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "conf-crawler",
		Short: "Download conference proceedings: paper PDFs plus one JSON record per paper",
		Long: `conf-crawler walks the yearly index pages of a conference archive
(NeurIPS proceedings by default), downloads every paper PDF and writes the
paper metadata to <output>/data_<year>/papers_data.jsons.

Years whose output already exists are skipped, so an interrupted crawl can be
restarted with the same arguments.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newCrawlCmd(stdout, stderr))
	root.AddCommand(newValidateCmd(stdout, stderr))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "conf-crawler %s\n", version)
		},
	})
	return root
}

// loadConfig reads path over the built-in defaults; an empty path means defaults only
func loadConfig(path string) (config.AppConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
