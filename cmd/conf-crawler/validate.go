package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newValidateCmd(stdout, stderr io.Writer) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a config file without crawling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := doValidate(configPath, stdout, stderr); code != ExitSuccess {
				return &exitError{code: code, err: fmt.Errorf("configuration invalid"), reported: true}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (defaults to the built-in NeurIPS settings)")
	return cmd
}

// doValidate loads, overlays the environment on and validates a config, reporting to stdout/stderr
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitUsage
	}
	appCfg.ApplyEnv(os.LookupEnv)

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return ExitUsage
	}

	fmt.Fprintf(stdout, "OK: site %s (first year %d, resume signal %s)\n",
		appCfg.Site.BaseURL, appCfg.Site.FirstYear, appCfg.ResumeSignal)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return ExitSuccess
}
