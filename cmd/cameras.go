// Package cmd holds the camctl subcommands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/camctl/internal/camera"
	"github.com/smazurov/camctl/internal/platform/sim"
)

// CameraDescription is one camera as printed by the cameras command.
type CameraDescription struct {
	ID                string   `json:"id"`
	LensFacing        string   `json:"lens_facing"`
	SensorOrientation int      `json:"sensor_orientation"`
	MaxDigitalZoom    float64  `json:"max_digital_zoom"`
	ActiveArray       string   `json:"active_array"`
	MaxAFRegions      int      `json:"max_af_regions"`
	HasFlash          bool     `json:"has_flash"`
	LargestJPEG       string   `json:"largest_jpeg"`
	PreviewSizes      []string `json:"preview_sizes"`
	JPEGSizes         []string `json:"jpeg_sizes"`
}

// CreateCamerasCmd creates the cameras command.
func CreateCamerasCmd() *cobra.Command {
	var camerasFile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "cameras",
		Short: "List the cameras of the platform",
		Long:  `Loads the camera definitions the daemon would use and prints their characteristics.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cameras, err := describeCameras(camerasFile)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cameras)
			}
			return printCameras(cmd.OutOrStdout(), cameras)
		},
	}

	cmd.Flags().StringVar(&camerasFile, "cameras-file", "cameras.toml", "Camera definitions file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func describeCameras(path string) ([]CameraDescription, error) {
	cfg, err := sim.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	platform, err := sim.New(cfg, sim.Options{Synchronous: true})
	if err != nil {
		return nil, err
	}

	ids, err := platform.CameraIDs()
	if err != nil {
		return nil, err
	}
	out := make([]CameraDescription, 0, len(ids))
	for _, id := range ids {
		c, err := platform.Characteristics(id)
		if err != nil {
			return nil, fmt.Errorf("camera %s: %w", id, err)
		}
		out = append(out, CameraDescription{
			ID:                id,
			LensFacing:        c.LensFacing.String(),
			SensorOrientation: c.SensorOrientation,
			MaxDigitalZoom:    c.MaxDigitalZoom,
			ActiveArray:       c.ActiveArray.String(),
			MaxAFRegions:      c.MaxAFRegions,
			HasFlash:          c.HasFlash,
			LargestJPEG:       largest(c.JPEGSizes),
			PreviewSizes:      sizeStrings(c.PreviewSizes),
			JPEGSizes:         sizeStrings(c.JPEGSizes),
		})
	}
	return out, nil
}

func sizeStrings(sizes []camera.Size) []string {
	out := make([]string, len(sizes))
	for i, s := range sizes {
		out[i] = s.String()
	}
	return out
}

func largest(sizes []camera.Size) string {
	best := camera.Size{}
	for _, s := range sizes {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	if best.Width == 0 {
		return "-"
	}
	return best.String()
}

func printCameras(w io.Writer, cameras []CameraDescription) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFACING\tSENSOR\tZOOM\tAF\tFLASH\tLARGEST JPEG")
	for _, c := range cameras {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1fx\t%d\t%t\t%s\n",
			c.ID, c.LensFacing, c.SensorOrientation, c.MaxDigitalZoom, c.MaxAFRegions, c.HasFlash, c.LargestJPEG)
	}
	return tw.Flush()
}

