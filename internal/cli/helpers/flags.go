package helpers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// AddFormatFlag adds a standard --format/-f flag to a command.
func AddFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat OutputFormat, supportedFormats []OutputFormat) {
	formatNames := make([]string, len(supportedFormats))
	for i, f := range supportedFormats {
		formatNames[i] = string(f)
	}

	description := fmt.Sprintf("Output format (%s)", strings.Join(formatNames, ", "))
	cmd.Flags().StringVarP(formatVar, "format", "f", string(defaultFormat), description)

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return formatNames, cobra.ShellCompDirectiveNoFileComp
	})
}

// ValidateFormat checks if the format is in the supported list.
func ValidateFormat(format string, supported []OutputFormat) error {
	names := make([]string, len(supported))
	for i, s := range supported {
		if format == string(s) {
			return nil
		}
		names[i] = string(s)
	}
	return fmt.Errorf("unsupported format %q, must be one of: %s", format, strings.Join(names, ", "))
}

// ParseAddress parses a code address given in decimal, or in hexadecimal with
// a 0x prefix.
func ParseAddress(s string) (uint64, error) {
	addr, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}
