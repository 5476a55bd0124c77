package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/door-ai-studio/internal/imaging"
	"github.com/ironsheep/door-ai-studio/internal/metrics"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare PHOTO",
	Short: "Write the letterboxed canvas and edit mask for a photo",
	Long: `Letterbox PHOTO onto the square canvas and build the edit mask, then
write image.png and mask.png to the output directory.

Box sizes are percentages of the canvas edge. Omitted sizes use the
configured default box.

Example usage:
  door-studio prepare door.jpg --out ./out
  door-studio prepare door.jpg --box-w 50 --box-h 85 --fill "#000000"`,
	Args: cobra.ExactArgs(1),
	RunE: runPrepare,
}

func init() {
	rootCmd.AddCommand(prepareCmd)

	prepareCmd.Flags().Float64("box-w", 0, "protected box width, percent of the canvas")
	prepareCmd.Flags().Float64("box-h", 0, "protected box height, percent of the canvas")
	prepareCmd.Flags().String("fill", "", "letterbox fill color as #RRGGBB (default from config)")
	prepareCmd.Flags().StringP("out", "o", ".", "output directory")
}

// prepareOutput is printed as JSON after the files are written.
type prepareOutput struct {
	Image     string           `json:"image"`
	Mask      string           `json:"mask"`
	BoxW      float64          `json:"box_w"`
	BoxH      float64          `json:"box_h"`
	Protected imaging.Geometry `json:"protected"`
}

func runPrepare(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	box, err := prepareBox(cmd)
	if err != nil {
		return err
	}

	fill := cfg.FillColor()
	if hex, _ := cmd.Flags().GetString("fill"); hex != "" {
		fill, err = imaging.ParseHexColor(hex)
		if err != nil {
			return fmt.Errorf("--fill: %w", err)
		}
	}

	comp, err := imaging.Compose(data, imaging.ComposeOptions{
		CanvasSize: cfg.Canvas.Size,
		Box:        box,
		Fill:       fill,
	})
	if err != nil {
		return err
	}
	metrics.RecordComposition("prepare")

	out, _ := cmd.Flags().GetString("out")
	imagePath, maskPath, err := comp.WriteFiles(out)
	if err != nil {
		return err
	}
	log.Debug("composition written", "image", imagePath, "mask", maskPath)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(prepareOutput{
		Image:     imagePath,
		Mask:      maskPath,
		BoxW:      math.Round(box.WidthFraction*10000) / 100,
		BoxH:      math.Round(box.HeightFraction*10000) / 100,
		Protected: imaging.RectGeometry(comp.CanvasSize, comp.Protected),
	})
}

// prepareBox reads --box-w and --box-h over the configured default and
// rejects sizes outside the slider range.
func prepareBox(cmd *cobra.Command) (imaging.Box, error) {
	bounds := cfg.BoxBounds()
	box := bounds.Default
	if cmd.Flags().Changed("box-w") {
		w, _ := cmd.Flags().GetFloat64("box-w")
		box.WidthFraction = w / 100
	}
	if cmd.Flags().Changed("box-h") {
		h, _ := cmd.Flags().GetFloat64("box-h")
		box.HeightFraction = h / 100
	}
	if err := bounds.Check(box); err != nil {
		return box, err
	}
	return box, nil
}
