package main

// Process exit codes
const (
	ExitSuccess = 0 // Crawl finished; skipped years and papers included
	ExitRuntime = 1 // Runtime failure (persistence, state store)
	ExitUsage   = 2 // Invalid arguments or configuration, reported before any network activity
)

// exitError carries the exit code a command failure maps to.
// reported is set when the command already printed the failure.
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error   { return &exitError{code: ExitUsage, err: err} }
func runtimeError(err error) error { return &exitError{code: ExitRuntime, err: err} }
