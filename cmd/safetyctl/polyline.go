package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"safemap/internal/directions"
	"safemap/internal/model"
)

var polylineCmd = &cobra.Command{
	Use:   "polyline",
	Short: "Encode or decode routing polylines",
}

var polylineDecodeCmd = &cobra.Command{
	Use:   "decode <encoded>",
	Short: "Decode an encoded polyline to JSON points",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pts, err := directions.DecodePolyline(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(pts)
	},
}

var polylineEncodeCmd = &cobra.Command{
	Use:   "encode [lat,lng ...]",
	Short: "Encode points given as arguments, or a JSON array on stdin",
	Long: `Encode points into the compact polyline format.

Examples:
  safetyctl polyline encode 38.5,-120.2 40.7,-120.95 43.252,-126.453
  echo '[{"lat":38.5,"lng":-120.2}]' | safetyctl polyline encode`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var pts []model.GeoPoint
		if len(args) == 0 {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &pts); err != nil {
				return fmt.Errorf("stdin must be a JSON array of {lat,lng}: %w", err)
			}
		}
		for _, a := range args {
			var p model.GeoPoint
			if _, err := fmt.Sscanf(strings.TrimSpace(a), "%g,%g", &p.Lat, &p.Lng); err != nil {
				return fmt.Errorf("point %q: %w", a, err)
			}
			pts = append(pts, p)
		}
		fmt.Fprintln(cmd.OutOrStdout(), directions.EncodePolyline(pts))
		return nil
	},
}

func init() {
	polylineCmd.AddCommand(polylineDecodeCmd, polylineEncodeCmd)
	rootCmd.AddCommand(polylineCmd)
}
