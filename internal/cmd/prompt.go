package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func confirmOverwrite(cmd *cobra.Command, assumeYes bool, target string) error {
	if assumeYes {
		return nil
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("check write target %s: %w", target, err)
	}
	if info.IsDir() {
		return fmt.Errorf("write target is a directory: %s", target)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s already exists. Overwrite? [y/N]: ", target)

	reader := bufio.NewReader(cmd.InOrStdin())
	input, err := reader.ReadString('\n')
	if err != nil && len(input) == 0 {
		return fmt.Errorf("not overwriting %s (no answer; pass --yes to skip the prompt)", target)
	}

	answer := strings.ToLower(strings.TrimSpace(input))
	if answer != "y" && answer != "yes" {
		return fmt.Errorf("not overwriting %s", target)
	}

	return nil
}
