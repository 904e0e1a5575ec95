package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/urbansafe/evacroute/internal/feeds"
	"github.com/urbansafe/evacroute/internal/model"
)

var (
	routeLat        float64
	routeLng        float64
	routeConditions string
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Compute a one-shot route to the nearest safe zone",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if routeConditions != "" {
			fixture, err := feeds.LoadFixture(routeConditions)
			if err != nil {
				return err
			}
			env.Feeds.SetSeismic(fixture.CurrentSnapshot())
			env.Feeds.SetHazards(fixture.CurrentHazardMap())
			env.Feeds.SetDensity(fixture.CurrentDensity())
		}

		result, err := env.Engine.CalculateRoute(cmd.Context(), model.LatLng{Lat: routeLat, Lng: routeLng})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	routeCmd.Flags().Float64Var(&routeLat, "lat", 0, "origin latitude")
	routeCmd.Flags().Float64Var(&routeLng, "lng", 0, "origin longitude")
	routeCmd.Flags().StringVar(&routeConditions, "conditions", "", "condition fixture file (JSON)")
	_ = routeCmd.MarkFlagRequired("lat")
	_ = routeCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(routeCmd)
}
