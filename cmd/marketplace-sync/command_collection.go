package main

import (
	"github.com/spf13/cobra"

	"github.com/saidutt46/switchboard-marketplace/internal/app"
	"github.com/saidutt46/switchboard-marketplace/internal/apperr"
	"github.com/saidutt46/switchboard-marketplace/internal/database"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage route collections",
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			collections, err := a.Repo.FindCollections(cmd.Context(), database.CollectionFilter{})
			if err != nil {
				return err
			}
			total, err := a.Repo.CountCollections(cmd.Context(), database.CollectionFilter{})
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"total":       total,
				"collections": collections,
			})
		})
	},
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete <collection-id>",
	Short: "Delete a collection that no longer holds routes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			routes, err := a.Repo.CountRoutes(cmd.Context(), database.RouteFilter{CollectionID: args[0]})
			if err != nil {
				return err
			}
			if routes > 0 {
				return apperr.BadRequest("collection %s still holds %d routes", args[0], routes)
			}
			return a.Repo.SoftDeleteCollection(cmd.Context(), args[0])
		})
	},
}

func registerCollectionCommand(root *cobra.Command) {
	root.AddCommand(collectionCmd)
	collectionCmd.AddCommand(collectionListCmd, collectionDeleteCmd)
}
