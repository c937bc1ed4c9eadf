package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"safemap/internal/model"
)

var (
	queryDays  int
	queryBBox  string
	querySteps int
)

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Compute the heatmap for a bounding box against the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		e, closeFn, err := openEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		payload, _, err := e.Heatmap(cmd.Context(), queryBBox, queryDays)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return err
	},
}

var routeCmd = &cobra.Command{
	Use:   "route <from-lat,lng> <to-lat,lng>",
	Short: "Score the sampled candidates between two points",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var from, to model.GeoPoint
		if _, err := fmt.Sscanf(args[0], "%g,%g", &from.Lat, &from.Lng); err != nil {
			return fmt.Errorf("from: %w", err)
		}
		if _, err := fmt.Sscanf(args[1], "%g,%g", &to.Lat, &to.Lng); err != nil {
			return fmt.Errorf("to: %w", err)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		e, closeFn, err := openEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		res, err := e.SafestRoute(cmd.Context(), from, to, querySteps, queryDays)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	heatmapCmd.Flags().StringVar(&queryBBox, "bbox", "", "Bounding box minLng,minLat,maxLng,maxLat")
	heatmapCmd.Flags().IntVar(&queryDays, "days", 0, "Window in days (default from config)")
	_ = heatmapCmd.MarkFlagRequired("bbox")

	routeCmd.Flags().IntVar(&querySteps, "steps", 0, "Interpolation steps (clamped to 5..200)")
	routeCmd.Flags().IntVar(&queryDays, "days", 0, "Window in days (default from config)")

	rootCmd.AddCommand(heatmapCmd, routeCmd)
}
