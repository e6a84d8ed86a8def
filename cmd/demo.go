package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/theapemachine/kgraph/pkg/extract"
	"github.com/theapemachine/kgraph/pkg/graph"
	"github.com/theapemachine/kgraph/pkg/reasoning"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the extraction pipeline on sample text",
	Long:  longDemo,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := demoText
		if len(args) > 0 {
			text = args[0]
		}

		store, err := graph.NewStore(graph.Config{})
		if err != nil {
			return err
		}

		entityExtractor := extract.NewEntityExtractor()
		relationExtractor := extract.NewRelationExtractor()

		entities := entityExtractor.Extract(text)
		relations := relationExtractor.Extract(text, entities)

		// Insert the candidates, remembering which store id each span got.
		ids := make(map[string]string, len(entities))
		for _, entity := range entities {
			confidence := entity.Confidence
			id, err := store.InsertEntity(graph.EntityPayload{
				Name:       entity.Text,
				Type:       entity.Type,
				Confidence: &confidence,
			})
			if err != nil {
				return err
			}
			ids[entity.Text] = id
		}

		for _, relation := range relations {
			confidence := relation.Confidence
			if _, err := store.InsertRelation(graph.RelationPayload{
				SourceID:   ids[relation.Source.Text],
				TargetID:   ids[relation.Target.Text],
				Type:       relation.Type,
				Confidence: &confidence,
			}); err != nil {
				return err
			}
		}

		fmt.Printf("extracted %d entities, %d relations\n", len(entities), len(relations))
		for _, entity := range entities {
			fmt.Printf("  [%s] %s (%.2f)\n", entity.Type, entity.Text, entity.Confidence)
		}
		for _, relation := range relations {
			fmt.Printf("  %s -%s-> %s (%.2f)\n",
				relation.SourceText, relation.Type, relation.TargetText, relation.Confidence)
		}

		engine := reasoning.NewEngine(store)
		for _, inference := range engine.Infer(text, 0) {
			fmt.Printf("  inference: %s (%.2f, %s)\n",
				inference.Content, inference.Relevance, inference.ReasoningType)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

const demoText = "John Smith works for Acme Corp. Acme Corp is located in " +
	"Berlin, Germany. John Smith created Python tooling for Machine Learning."

var longDemo = `
Run the full extraction pipeline on a piece of text: extract entities and
relations, insert them into an in-memory graph, and print the inferences
the reasoning engine draws from the text.

Examples:
  kgraph demo
  kgraph demo "Jane Doe works for Globex Inc"
`
