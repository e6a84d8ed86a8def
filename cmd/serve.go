package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/kgraph/pkg/graph"
	"github.com/theapemachine/kgraph/pkg/reasoning"
	"github.com/theapemachine/kgraph/pkg/service"
)

var (
	portFlag int
	hostFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the knowledge graph HTTP API",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}

			srv := service.NewServer(store, reasoning.NewEngine(store))
			return srv.Run(fmt.Sprintf("%s:%d", hostFlag, portFlag))
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 3210, "Port to serve on")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")
}

// newStore builds the graph store from the loaded config.
func newStore() (*graph.Store, error) {
	return graph.NewStore(graph.Config{
		MemoryPath:   expandHome(viper.GetString("graph.memory_path")),
		MaxEntities:  viper.GetInt("graph.max_entities"),
		MaxRelations: viper.GetInt("graph.max_relations"),
	})
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

var longServe = `
Serve the knowledge graph engine over HTTP.

Examples:
  # Serve on the default port
  kgraph serve

  # Serve on port 8080
  kgraph serve --port 8080
`
