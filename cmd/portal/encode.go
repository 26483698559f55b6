package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/webarportal/portal/internal/assets"
	"github.com/webarportal/portal/internal/config"
	"github.com/webarportal/portal/internal/util"
)

var encodeOutput string

var encodeCmd = &cobra.Command{
	Use:   "encode IMAGE",
	Short: "Generate a pattern descriptor for an image without registering it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return encodeFile(args[0], encodeOutput, cmd.OutOrStdout())
	},
}

func init() {
	encodeCmd.Flags().StringVarP(&encodeOutput, "output", "o", "", "write the descriptor to FILE instead of stdout")
	rootCmd.AddCommand(encodeCmd)
}

// encodeFile runs the ingest pipeline on the image at path. The descriptor is
// written atomically to output, or to stdout when output is empty.
func encodeFile(path, output string, stdout io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	// nothing is stored offline; the store only satisfies the pipeline
	pipeline := newPipeline(config.GetPatternConfig(), assets.NewMemoryStore(""))
	desc, err := pipeline.Encode(data)
	if err != nil {
		return err
	}
	text, err := desc.MarshalText()
	if err != nil {
		return fmt.Errorf("failed to render descriptor: %w", err)
	}

	if output == "" {
		_, err = stdout.Write(text)
		return err
	}
	if err := util.WriteFileAtomic(output, text, 0o644); err != nil {
		return fmt.Errorf("failed to write descriptor: %w", err)
	}
	cliLog.Info().Str("file", output).Int("bytes", len(text)).Msg("Descriptor written")
	return nil
}
