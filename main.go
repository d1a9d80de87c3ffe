package main

import (
	"context"
	"fmt"
	"os"

	"github.com/schmitthub/release-images/internal/build"
	"github.com/schmitthub/release-images/internal/cmd"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run() error {
	rootCmd := cmd.NewRootCmd(build.Version, build.Date)
	_, err := rootCmd.ExecuteContextC(context.Background())
	return err
}

type exitCoder interface {
	ExitCode() int
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}

	// Only the top-level error decides; a wrapped *exec.ExitError from the
	// container engine must not leak its own status.
	if coded, ok := err.(exitCoder); ok {
		return coded.ExitCode()
	}

	return 1
}
