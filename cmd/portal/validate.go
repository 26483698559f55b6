package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/webarportal/portal/internal/config"
	"github.com/webarportal/portal/internal/imaging"
)

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate IMAGE",
	Short: "Check whether an image can serve as a marker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		pc := config.GetPatternConfig()
		res := imaging.NewValidator(pc.MinImageSize, pc.MaxImageSize).Validate(data)
		if err := printValidation(cmd.OutOrStdout(), res, validateJSON); err != nil {
			return err
		}
		if !res.Valid {
			return fmt.Errorf("%s is not usable as a marker", args[0])
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(validateCmd)
}

func printValidation(w io.Writer, res imaging.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	m := res.Metadata
	fmt.Fprintf(w, "format: %s  size: %dx%d  bytes: %d\n", orUnknown(m.Format), m.Width, m.Height, m.Bytes)
	if res.Valid {
		fmt.Fprintln(w, "valid")
		return nil
	}
	for _, issue := range res.Issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
