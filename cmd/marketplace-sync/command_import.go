package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saidutt46/switchboard-marketplace/internal/app"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
	"github.com/saidutt46/switchboard-marketplace/internal/importer"
	"github.com/saidutt46/switchboard-marketplace/internal/normalize"
)

var (
	importFile           string
	importName           string
	importEnv            string
	importBaseURL        string
	importCollectionID   string
	importCollectionName string
	importTiers          []int64
	importEnabled        bool
	importIntrospect     bool

	importListStatus []string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import routes from an OpenAPI, Swagger or Postman document",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(importFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", importFile, err)
		}
		req := importer.Request{
			Name:           importName,
			Spec:           raw,
			CollectionID:   importCollectionID,
			CollectionName: importCollectionName,
			Options: normalize.Options{
				Environment:             importEnv,
				BaseURL:                 importBaseURL,
				Tiers:                   importTiers,
				Enabled:                 importEnabled,
				IntrospectAuthorization: importIntrospect,
			},
		}

		return withApp(func(a *app.App) error {
			spec, err := a.Importer.Import(cmd.Context(), author, req)
			if err != nil {
				return err
			}
			return printJSON(spec)
		})
	},
}

var importRetryCmd = &cobra.Command{
	Use:   "retry <import-id>",
	Short: "Retry the failed endpoints of a partial or failed import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			spec, err := a.Importer.Retry(cmd.Context(), author, args[0])
			if err != nil {
				return err
			}
			return printJSON(spec)
		})
	},
}

var importListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := database.ImportFilter{}
		for _, s := range importListStatus {
			filter.Status = append(filter.Status, database.ImportStatus(s))
		}
		return withApp(func(a *app.App) error {
			specs, err := a.Repo.FindImportedSpecs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(specs)
		})
	},
}

var importDeleteCmd = &cobra.Command{
	Use:   "delete <import-id>",
	Short: "Delete an import record; routes it created are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			return a.Repo.SoftDeleteImportedSpec(cmd.Context(), args[0])
		})
	},
}

func registerImportCommand(root *cobra.Command) {
	root.AddCommand(importCmd)
	importCmd.AddCommand(importRetryCmd, importListCmd, importDeleteCmd)

	importListCmd.Flags().StringSliceVar(&importListStatus, "status", nil, "Only imports in these statuses")

	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Specification file (JSON or YAML)")
	importCmd.Flags().StringVar(&importName, "name", "", "Import name (default: specification title)")
	importCmd.Flags().StringVarP(&importEnv, "env", "e", "sandbox", "Route environment (sandbox/production)")
	importCmd.Flags().StringVar(&importBaseURL, "base-url", "", "Upstream base URL overriding the specification's servers")
	importCmd.Flags().StringVar(&importCollectionID, "collection", "", "Existing collection id")
	importCmd.Flags().StringVar(&importCollectionName, "collection-name", "", "Collection to reuse or create (default: specification title)")
	importCmd.Flags().Int64SliceVar(&importTiers, "tiers", nil, "Access tiers granted to every imported route")
	importCmd.Flags().BoolVar(&importEnabled, "enabled", true, "Enable imported routes")
	importCmd.Flags().BoolVar(&importIntrospect, "introspect", false, "Require token introspection on imported routes")
	importCmd.MarkFlagRequired("file")
}

