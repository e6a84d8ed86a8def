package reasoning

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/kgraph/pkg/graph"
)

func counterGen() graph.IDGen {
	n := 0
	return func(prefix string) string {
		n++
		return fmt.Sprintf("%s_%d", prefix, n)
	}
}

func conf(v float64) *float64 {
	return &v
}

func newTestEngine(t *testing.T) (*Engine, *graph.Store) {
	t.Helper()

	store, err := graph.NewStore(graph.Config{IDGen: counterGen()})
	require.NoError(t, err)

	engine := NewEngine(store)
	engine.idgen = counterGen()
	return engine, store
}

func TestAddRuleDefaults(t *testing.T) {
	engine, _ := newTestEngine(t)

	rule := engine.AddRule(Rule{
		Name:       "transitivity",
		Premises:   []string{"located"},
		Conclusion: "location is transitive",
	})

	assert.Equal(t, "rule_1", rule.ID)
	require.NotNil(t, rule.Confidence)
	assert.Equal(t, 1.0, *rule.Confidence)
	assert.Equal(t, "forward", rule.Type)
	assert.Len(t, engine.Rules(), 1)
}

func TestAddRuleKeepsExplicitZeroConfidence(t *testing.T) {
	engine, _ := newTestEngine(t)

	rule := engine.AddRule(Rule{
		Name:       "distrusted source",
		Premises:   []string{"rumor"},
		Conclusion: "treat as hearsay",
		Confidence: conf(0.0),
	})
	require.NotNil(t, rule.Confidence)
	assert.Equal(t, 0.0, *rule.Confidence)

	// The zero travels through to the fired inference instead of being
	// silently promoted to the 1.0 default.
	inferences := engine.Infer("a rumor about acme", 0)
	require.Len(t, inferences, 1)
	assert.Equal(t, 0.0, inferences[0].Confidence)

	explanation, ok := engine.Explain(inferences[0].ID)
	require.True(t, ok)
	assert.Contains(t, explanation.ConfidenceFactors[0], "Lower confidence")
}

func TestDirectInferences(t *testing.T) {
	engine, store := newTestEngine(t)

	confidence := 0.9
	_, err := store.InsertEntity(graph.EntityPayload{
		Name:       "Python",
		Type:       "technology",
		Confidence: &confidence,
	})
	require.NoError(t, err)

	inferences := engine.Infer("python", 0)
	require.NotEmpty(t, inferences)
	assert.Equal(t, "Python", inferences[0].Content)
	assert.Equal(t, TypeDirect, inferences[0].ReasoningType)
	assert.Equal(t, 0.9, inferences[0].Confidence)
}

func TestRuleInferences(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.AddRule(Rule{
		Name:       "employment implies income",
		Premises:   []string{"works for"},
		Conclusion: "the subject earns a salary",
	})
	engine.AddRule(Rule{
		Name:       "unrelated",
		Premises:   []string{"volcano"},
		Conclusion: "never fires here",
	})

	inferences := engine.Infer("Alice works for Acme", 0)
	require.Len(t, inferences, 1)
	assert.Equal(t, "inference_rule_1", inferences[0].ID)
	assert.Equal(t, "the subject earns a salary", inferences[0].Content)
	assert.Equal(t, TypeRuleBased, inferences[0].ReasoningType)
	assert.Equal(t, 0.7, inferences[0].Relevance)
	assert.Equal(t, "employment implies income", inferences[0].RuleApplied)
}

func TestRuleFiresOncePerQuery(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.AddRule(Rule{
		Name:       "multi-premise",
		Premises:   []string{"works for", "employed by"},
		Conclusion: "employment",
	})

	// Both premises match but the rule contributes a single record.
	inferences := engine.Infer("alice works for and is employed by acme", 0)
	require.Len(t, inferences, 1)
}

func TestGraphInferences(t *testing.T) {
	engine, store := newTestEngine(t)

	python, err := store.InsertEntity(graph.EntityPayload{
		Name: "Python", Type: "technology",
	})
	require.NoError(t, err)
	django, err := store.InsertEntity(graph.EntityPayload{
		Name: "Django", Type: "technology",
	})
	require.NoError(t, err)
	_, err = store.InsertRelation(graph.RelationPayload{
		SourceID: python, TargetID: django, Type: "powers",
	})
	require.NoError(t, err)

	var hit *Inference
	for _, inference := range engine.Infer("python", 0) {
		if inference.ReasoningType == TypeGraph {
			hit = &inference
			break
		}
	}

	require.NotNil(t, hit)
	assert.Equal(t, fmt.Sprintf("graph_inference_%s_%s", python, django), hit.ID)
	assert.Equal(t, "Python is related to Django", hit.Content)
	assert.Equal(t, 0.5, hit.Strength)
	assert.Equal(t, 1, hit.Distance)
	assert.InDelta(t, 0.4, hit.Relevance, 1e-9)
}

func TestInferCacheIsNeverInvalidated(t *testing.T) {
	engine, store := newTestEngine(t)

	_, err := store.InsertEntity(graph.EntityPayload{Name: "Python"})
	require.NoError(t, err)

	first := engine.Infer("python", 0)
	require.Len(t, first, 1)

	// New data after the first call does not change the cached answer.
	_, err = store.InsertEntity(graph.EntityPayload{Name: "Python 3"})
	require.NoError(t, err)

	second := engine.Infer("python", 0)
	assert.Equal(t, first, second)

	// A different depth is a different cache key and sees the new state.
	third := engine.Infer("python", 5)
	assert.Len(t, third, 2)
}

func TestInferCapsResults(t *testing.T) {
	engine, store := newTestEngine(t)

	for i := 0; i < 15; i++ {
		_, err := store.InsertEntity(graph.EntityPayload{
			Name: fmt.Sprintf("Python library %02d", i),
		})
		require.NoError(t, err)
	}

	inferences := engine.Infer("python", 0)
	assert.Len(t, inferences, maxInferences)

	for i := 1; i < len(inferences); i++ {
		assert.GreaterOrEqual(t, inferences[i-1].Relevance, inferences[i].Relevance)
	}
}

func TestExplain(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.AddRule(Rule{
		Name:       "employment implies income",
		Premises:   []string{"works for"},
		Conclusion: "the subject earns a salary",
		Confidence: conf(0.9),
	})
	inferences := engine.Infer("alice works for acme", 0)
	require.Len(t, inferences, 1)

	explanation, ok := engine.Explain(inferences[0].ID)
	require.True(t, ok)
	assert.Contains(t, explanation.Explanation, "employment implies income")
	assert.Contains(t, explanation.ConfidenceFactors[0], "High confidence")
	assert.Contains(t, explanation.ConfidenceFactors[1], "reasoning rules")

	_, ok = engine.Explain("inference_unknown")
	assert.False(t, ok)
}

func TestStatistics(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.AddRule(Rule{Name: "a", Premises: []string{"x"}, Conclusion: "y"})
	engine.AddRule(Rule{Name: "b", Premises: []string{"x"}, Conclusion: "y", Type: "backward"})
	engine.Infer("anything", 0)

	stats := engine.Statistics()
	assert.Equal(t, 2, stats.TotalRules)
	assert.Equal(t, 1, stats.CachedInferences)
	assert.Equal(t, 1, stats.RuleTypes["forward"])
	assert.Equal(t, 1, stats.RuleTypes["backward"])
}
