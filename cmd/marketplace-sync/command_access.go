package main

import (
	"github.com/spf13/cobra"

	"github.com/saidutt46/switchboard-marketplace/internal/access"
	"github.com/saidutt46/switchboard-marketplace/internal/app"
)

var (
	accessCompany string
	accessEnv     string
	accessRoutes  []string
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Manage company access grants",
}

var accessSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Make a company's route grants equal the given routes",
	Long:  "sync grants the company exactly the given routes in one environment. Routes not listed are revoked; no --route flags revokes every route grant.",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := access.Request{
			CompanyID:   accessCompany,
			Environment: accessEnv,
			RouteIDs:    accessRoutes,
		}
		return withApp(func(a *app.App) error {
			res, err := a.Access.Reconcile(cmd.Context(), author, req)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

func registerAccessCommand(root *cobra.Command) {
	root.AddCommand(accessCmd)
	accessCmd.AddCommand(accessSyncCmd)

	accessSyncCmd.Flags().StringVar(&accessCompany, "company", "", "Company id")
	accessSyncCmd.Flags().StringVarP(&accessEnv, "env", "e", "sandbox", "Gateway environment (sandbox/production)")
	accessSyncCmd.Flags().StringArrayVar(&accessRoutes, "route", nil, "Route id to grant (repeatable)")
	accessSyncCmd.MarkFlagRequired("company")
}
