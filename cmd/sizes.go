package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/camctl/internal/camera"
	"github.com/smazurov/camctl/internal/platform/sim"
)

// SizesResult is what the sizes command prints.
type SizesResult struct {
	CameraID         string             `json:"camera_id"`
	Preset           string             `json:"preset"`
	MediaOrientation int                `json:"media_orientation"`
	Sizes            camera.OutputSizes `json:"sizes"`
}

// CreateSizesCmd creates the sizes command.
func CreateSizesCmd() *cobra.Command {
	var (
		camerasFile string
		cameraID    string
		preset      string
		screen      string
		orientation int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "sizes",
		Short: "Show the sizes a session would use",
		Long: `Runs output size selection for one camera without opening it: the capture size, ` +
			`preview size and video size for a preset, screen and device orientation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			screenSize, err := camera.ParseSize(screen)
			if err != nil {
				return fmt.Errorf("--screen: %w", err)
			}
			result, err := selectSizes(camerasFile, cameraID, preset, screenSize, orientation)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintf(out, "camera %s, preset %s, media orientation %d\n", result.CameraID, result.Preset, result.MediaOrientation)
			fmt.Fprintf(out, "  capture  %s\n", result.Sizes.Capture)
			fmt.Fprintf(out, "  preview  %s\n", result.Sizes.Preview)
			fmt.Fprintf(out, "  video    %s\n", result.Sizes.Video)
			return nil
		},
	}

	cmd.Flags().StringVar(&camerasFile, "cameras-file", "cameras.toml", "Camera definitions file")
	cmd.Flags().StringVar(&cameraID, "camera", "0", "Camera id")
	cmd.Flags().StringVar(&preset, "preset", string(camera.PresetMedium), "Resolution preset (low, medium, high)")
	cmd.Flags().StringVar(&screen, "screen", "1080x2400", "Screen resolution")
	cmd.Flags().IntVar(&orientation, "orientation", camera.OrientationUnknown, "Device orientation in degrees, -1 when unknown")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func selectSizes(camerasFile, cameraID, presetName string, screen camera.Size, orientation int) (SizesResult, error) {
	preset, err := camera.ParsePreset(presetName)
	if err != nil {
		return SizesResult{}, err
	}

	cfg, err := sim.LoadConfig(camerasFile)
	if err != nil {
		return SizesResult{}, err
	}
	platform, err := sim.New(cfg, sim.Options{Synchronous: true})
	if err != nil {
		return SizesResult{}, err
	}
	c, err := platform.Characteristics(cameraID)
	if err != nil {
		return SizesResult{}, fmt.Errorf("camera %s: %w", cameraID, err)
	}

	media := camera.MediaOrientation(c.SensorOrientation, c.LensFacing, orientation)
	sizes, err := camera.SelectSizes(camera.SizeRequest{
		PreviewSizes:     c.PreviewSizes,
		JPEGSizes:        c.JPEGSizes,
		MinHeight:        preset.MinHeight(),
		Screen:           screen,
		MediaOrientation: media,
	})
	if err != nil {
		return SizesResult{}, err
	}
	return SizesResult{
		CameraID:         cameraID,
		Preset:           string(preset),
		MediaOrientation: media,
		Sizes:            sizes,
	}, nil
}
