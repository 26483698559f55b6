package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/webarportal/portal/internal/api"
)

var (
	uploadServer      string
	uploadName        string
	uploadDescription string
)

var uploadCmd = &cobra.Command{
	Use:   "upload IMAGE",
	Short: "Register an image as a marker on a running portal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(uploadServer)
		status, err := client.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("portal at %s is not reachable: %w", uploadServer, err)
		}
		cliLog.Debug().Int("markers", status.MarkersCount).Msg("Portal is running")

		created, err := client.UploadMarker(cmd.Context(), args[0], uploadName, uploadDescription)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "marker %d registered\n  image: %s\n  pattern: %s\n",
			created.MarkerID, created.ImageURL, created.PattURL)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadServer, "server", "http://localhost:8080", "base URL of the portal")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "marker name (required)")
	uploadCmd.Flags().StringVar(&uploadDescription, "description", "", "marker description")
	_ = uploadCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(uploadCmd)
}
