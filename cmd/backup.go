package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/kgraph/pkg/stores/s3"
)

var (
	snapshotName string

	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Upload a snapshot of the graph to S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}

			snapshots, err := newSnapshots(cmd.Context())
			if err != nil {
				return err
			}

			return snapshots.Save(cmd.Context(), snapshotName, store.Export())
		},
	}

	restoreCmd = &cobra.Command{
		Use:   "restore",
		Short: "Restore the graph from an S3 snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}

			snapshots, err := newSnapshots(cmd.Context())
			if err != nil {
				return err
			}

			doc, err := snapshots.Load(cmd.Context(), snapshotName)
			if err != nil {
				return err
			}

			store.Import(doc)
			fmt.Printf("restored %d entities, %d relations\n",
				store.EntityCount(), store.RelationCount())
			return nil
		},
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print statistics for the persisted graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}

			stats := store.Statistics()
			fmt.Printf("entities:            %d\n", stats.TotalEntities)
			fmt.Printf("relations:           %d\n", stats.TotalRelations)
			fmt.Printf("graph nodes:         %d\n", stats.GraphNodes)
			fmt.Printf("graph edges:         %d\n", stats.GraphEdges)
			fmt.Printf("entity types:        %d\n", stats.EntityTypes)
			fmt.Printf("indexed attributes:  %d\n", stats.IndexedAttributes)
			fmt.Printf("avg entity score:    %.3f\n", stats.AverageEntityImportance)
			fmt.Printf("avg relation score:  %.3f\n", stats.AverageRelationImportance)
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(statsCmd)

	backupCmd.Flags().StringVarP(&snapshotName, "name", "n", "default", "Snapshot name")
	restoreCmd.Flags().StringVarP(&snapshotName, "name", "n", "default", "Snapshot name")
}

// newSnapshots dials the configured S3 endpoint.
func newSnapshots(ctx context.Context) (*s3.Snapshots, error) {
	conn, err := s3.NewConn(s3.ConnConfig{
		Endpoint:  viper.GetString("s3.endpoint"),
		AccessKey: viper.GetString("s3.access_key"),
		SecretKey: viper.GetString("s3.secret_key"),
		UseSSL:    viper.GetBool("s3.use_ssl"),
	})
	if err != nil {
		return nil, err
	}
	return s3.NewSnapshots(ctx, conn)
}
