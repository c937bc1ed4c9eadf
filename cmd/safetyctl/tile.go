package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"safemap/internal/geo"
	"safemap/internal/model"
)

var tileSize float64

var tileCmd = &cobra.Command{
	Use:   "tile <lat> <lng>",
	Short: "Print the tile id and origin corner for a coordinate",
	Long: `Quantize a coordinate onto the safety grid.

Examples:
  safetyctl tile 40.7128 -74.0060
  safetyctl tile 40.7128 -74.0060 --size 100`,
	Args: cobra.ExactArgs(2),
	RunE: runTile,
}

func init() {
	tileCmd.Flags().Float64Var(&tileSize, "size", 0, "Tile size in meters (default from config)")
	rootCmd.AddCommand(tileCmd)
}

func runTile(cmd *cobra.Command, args []string) error {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("lat: %w", err)
	}
	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("lng: %w", err)
	}
	if err := geo.ValidatePoint(model.GeoPoint{Lat: lat, Lng: lng}); err != nil {
		return err
	}
	size := tileSize
	if size == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		size = cfg.Safety.TileSizeMeters
	}
	ix, err := geo.NewTileIndex(size)
	if err != nil {
		return err
	}
	id := ix.ToTile(lat, lng)
	corner, err := geo.Centroid(id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "tile:   %s\n", id)
	fmt.Fprintf(out, "origin: %.6f,%.6f\n", corner.Lat, corner.Lng)
	fmt.Fprintf(out, "size:   %gm (%.8f deg)\n", size, ix.Delta())
	return nil
}
