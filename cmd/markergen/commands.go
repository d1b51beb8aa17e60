package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ar-asset-backend/internal/imagebuf"
	"ar-asset-backend/internal/marker"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "markergen",
		Short: "Generate AR tracking markers from images",
		Long: "markergen turns a photograph into a high-contrast, orientation-marked\n" +
			"tracking marker, the same way the API does on upload.",
		SilenceUsage: true,
	}
	root.AddCommand(newGenerateCmd())
	root.AddCommand(newThresholdCmd())
	return root
}

func newGenerateCmd() *cobra.Command {
	var (
		output string
		size   int
		border int
	)

	cmd := &cobra.Command{
		Use:   "generate <image>",
		Short: "Write a marker PNG for an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := marker.NewCompositor(size, border)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			png, err := c.ComposeBytes(data)
			if err != nil {
				return fmt.Errorf("failed to generate marker: %w", err)
			}

			if output == "" {
				output = defaultOutput(args[0])
			}
			if err := os.WriteFile(output, png, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d)\n", output, c.Size(), c.Size())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <image>_marker.png)")
	cmd.Flags().IntVar(&size, "size", marker.DefaultSize, "canvas size in pixels")
	cmd.Flags().IntVar(&border, "border", marker.DefaultBorder, "frame width in pixels")
	return cmd
}

func newThresholdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "threshold <image>",
		Short: "Print the Otsu threshold of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			buf, err := imagebuf.Decode(data)
			if err != nil {
				return err
			}
			buf = imagebuf.Resize(buf, marker.MaxSourceDimension)

			img := buf.Image()
			t := marker.OtsuThreshold(marker.GrayHistogram(img, img.Bounds()))
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func defaultOutput(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_marker.png"
}
