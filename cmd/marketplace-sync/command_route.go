package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/saidutt46/switchboard-marketplace/internal/apis"
	"github.com/saidutt46/switchboard-marketplace/internal/app"
)

var (
	routeFile string
	routeID   string
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Manage route definitions",
}

var routeApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create a route, or update it when --id is given, from a YAML definition",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(routeFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", routeFile, err)
		}
		var in apis.RouteInput
		if err := yaml.Unmarshal(raw, &in); err != nil {
			return fmt.Errorf("failed to parse %s: %w", routeFile, err)
		}

		return withApp(func(a *app.App) error {
			if routeID == "" {
				route, err := a.Routes.Create(cmd.Context(), author, in)
				if err != nil {
					return err
				}
				return printJSON(route)
			}
			route, err := a.Routes.Update(cmd.Context(), author, routeID, in)
			if err != nil {
				return err
			}
			return printJSON(route)
		})
	},
}

var routeGetCmd = &cobra.Command{
	Use:   "get <route-id>",
	Short: "Print a stored route definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			route, err := a.Routes.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(route)
		})
	},
}

var routeDeleteCmd = &cobra.Command{
	Use:   "delete <route-id>",
	Short: "Delete a route from the gateway and the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			return a.Routes.Delete(cmd.Context(), author, args[0])
		})
	},
}

func registerRouteCommand(root *cobra.Command) {
	root.AddCommand(routeCmd)
	routeCmd.AddCommand(routeApplyCmd, routeGetCmd, routeDeleteCmd)

	routeApplyCmd.Flags().StringVarP(&routeFile, "file", "f", "", "Route definition (YAML)")
	routeApplyCmd.Flags().StringVar(&routeID, "id", "", "Existing route id to update")
	routeApplyCmd.MarkFlagRequired("file")
}
