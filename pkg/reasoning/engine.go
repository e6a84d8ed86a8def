package reasoning

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/kgraph/pkg/graph"
)

// Reasoning types attached to inference records.
const (
	TypeDirect    = "direct"
	TypeRuleBased = "rule_based"
	TypeGraph     = "graph_based"
)

// maxInferences caps every cached result list.
const maxInferences = 10

/*
Rule is a static forward rule: when any premise appears as a substring of
the lower-cased query, the rule fires and contributes its conclusion.
Confidence is optional and defaults to 1.0 when absent; an explicit zero
is kept as zero.
*/
type Rule struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Premises   []string `json:"premises"`
	Conclusion string   `json:"conclusion"`
	Confidence *float64 `json:"confidence,omitempty"`
	Type       string   `json:"type"`
}

/*
Inference is one ranked reasoning result. Direct hits reuse the underlying
record's id; rule and graph inferences synthesize their own.
*/
type Inference struct {
	ID            string  `json:"id"`
	Content       string  `json:"content"`
	Confidence    float64 `json:"confidence"`
	Relevance     float64 `json:"relevance"`
	ReasoningType string  `json:"reasoning_type"`
	RuleApplied   string  `json:"rule_applied,omitempty"`
	SourceEntity  string  `json:"source_entity,omitempty"`
	TargetEntity  string  `json:"target_entity,omitempty"`
	Strength      float64 `json:"relationship_strength,omitempty"`
	Distance      int     `json:"relationship_distance,omitempty"`
}

/*
Explanation pairs a cached inference with a natural-language account of how
it was derived.
*/
type Explanation struct {
	Inference         Inference `json:"inference"`
	Explanation       string    `json:"explanation"`
	ConfidenceFactors []string  `json:"confidence_factors"`
}

type cacheKey struct {
	query    string
	maxDepth int
}

/*
Engine layers rule-based and graph-based inference on top of a graph
store. Results are cached by (query, max depth) and the cache is never
invalidated on graph mutation: repeated calls return the snapshot taken on
first evaluation. That staleness is a documented property, not a bug.
*/
type Engine struct {
	mu    sync.RWMutex
	store *graph.Store
	rules []Rule
	cache map[cacheKey][]Inference
	idgen graph.IDGen
}

// NewEngine builds a reasoning engine over the given store.
func NewEngine(store *graph.Store) *Engine {
	return &Engine{
		store: store,
		cache: make(map[cacheKey][]Inference),
		idgen: graph.NewUUIDGen(),
	}
}

/*
AddRule appends a rule, filling in an id, confidence 1.0 and type
"forward" when absent.
*/
func (e *Engine) AddRule(rule Rule) Rule {
	if rule.ID == "" {
		rule.ID = e.idgen("rule")
	}
	if rule.Confidence == nil {
		full := 1.0
		rule.Confidence = &full
	}
	if rule.Type == "" {
		rule.Type = "forward"
	}

	e.mu.Lock()
	e.rules = append(e.rules, rule)
	e.mu.Unlock()

	log.Info("added reasoning rule", "id", rule.ID, "name", rule.Name)
	return rule
}

// Rules returns a copy of the registered rules.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

/*
Infer answers a query by merging three sources: direct store query
results, fired rules, and graph-traversal inferences bounded by maxDepth.
The merged list is de-duplicated by id (first occurrence wins), sorted
descending by relevance and truncated to ten entries, then cached.
*/
func (e *Engine) Infer(query string, maxDepth int) []Inference {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	key := cacheKey{query: query, maxDepth: maxDepth}

	e.mu.RLock()
	if cached, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		out := make([]Inference, len(cached))
		copy(out, cached)
		return out
	}
	e.mu.RUnlock()

	var merged []Inference
	merged = append(merged, e.directInferences(query)...)
	merged = append(merged, e.ruleInferences(query)...)
	merged = append(merged, e.graphInferences(query, maxDepth)...)

	unique := merged[:0]
	seen := make(map[string]struct{}, len(merged))
	for _, inference := range merged {
		if _, dup := seen[inference.ID]; dup {
			continue
		}
		seen[inference.ID] = struct{}{}
		unique = append(unique, inference)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Relevance > unique[j].Relevance
	})
	if len(unique) > maxInferences {
		unique = unique[:maxInferences]
	}

	e.mu.Lock()
	e.cache[key] = unique
	e.mu.Unlock()

	out := make([]Inference, len(unique))
	copy(out, unique)
	return out
}

// directInferences wraps raw store query results unchanged.
func (e *Engine) directInferences(query string) []Inference {
	results := e.store.Query(query, maxInferences)
	out := make([]Inference, 0, len(results))

	for _, result := range results {
		inference := Inference{
			ID:            result.ID(),
			Relevance:     result.Relevance,
			ReasoningType: TypeDirect,
		}
		if result.Kind == graph.ResultEntity {
			inference.Content = result.Entity.Name
			inference.Confidence = result.Entity.Confidence
		} else {
			inference.Content = fmt.Sprintf("%s %s %s",
				result.SourceName, result.Relation.Type, result.TargetName)
			inference.Confidence = result.Relation.Confidence
		}
		out = append(out, inference)
	}
	return out
}

// ruleInferences fires every rule whose premises match the query. Each
// rule contributes at most one record regardless of how many premises hit.
func (e *Engine) ruleInferences(query string) []Inference {
	needle := strings.ToLower(query)

	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Inference
	for _, rule := range e.rules {
		fired := false
		for _, premise := range rule.Premises {
			if strings.Contains(needle, strings.ToLower(premise)) {
				fired = true
				break
			}
		}
		if !fired {
			continue
		}

		out = append(out, Inference{
			ID:            "inference_" + rule.ID,
			Content:       rule.Conclusion,
			Confidence:    *rule.Confidence,
			Relevance:     0.7,
			ReasoningType: TypeRuleBased,
			RuleApplied:   rule.Name,
		})
	}
	return out
}

// graphInferences synthesizes one inference per entity reachable from each
// direct entity hit, scored by relationship strength.
func (e *Engine) graphInferences(query string, maxDepth int) []Inference {
	var out []Inference

	for _, result := range e.store.Query(query, maxInferences) {
		if result.Kind != graph.ResultEntity {
			continue
		}

		for _, related := range e.store.FindRelated(result.Entity.ID, nil, maxDepth) {
			out = append(out, Inference{
				ID: fmt.Sprintf("graph_inference_%s_%s",
					result.Entity.ID, related.Entity.ID),
				Content: fmt.Sprintf("%s is related to %s",
					result.Entity.Name, related.Entity.Name),
				Confidence:    related.Strength,
				Relevance:     related.Strength * 0.8,
				ReasoningType: TypeGraph,
				SourceEntity:  result.Entity.Name,
				TargetEntity:  related.Entity.Name,
				Strength:      related.Strength,
				Distance:      related.Distance,
			})
		}
	}
	return out
}

/*
Explain looks an inference up across all cached result lists and returns a
natural-language explanation of how it was derived. Returns false when the
id is not in any cached list.
*/
func (e *Engine) Explain(inferenceID string) (Explanation, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, cached := range e.cache {
		for _, inference := range cached {
			if inference.ID != inferenceID {
				continue
			}
			return Explanation{
				Inference:         inference,
				Explanation:       explain(inference),
				ConfidenceFactors: confidenceFactors(inference),
			}, true
		}
	}
	return Explanation{}, false
}

func explain(inference Inference) string {
	switch inference.ReasoningType {
	case TypeRuleBased:
		return fmt.Sprintf("This conclusion was derived using the reasoning rule: %s",
			inference.RuleApplied)
	case TypeGraph:
		return fmt.Sprintf("This inference is based on the relationship between %s and %s (strength: %.2f)",
			inference.SourceEntity, inference.TargetEntity, inference.Strength)
	default:
		return "This result was retrieved directly from the knowledge graph."
	}
}

func confidenceFactors(inference Inference) []string {
	var factors []string

	switch {
	case inference.Confidence > 0.8:
		factors = append(factors, "High confidence based on strong evidence")
	case inference.Confidence > 0.6:
		factors = append(factors, "Moderate confidence based on available evidence")
	default:
		factors = append(factors, "Lower confidence due to limited evidence")
	}

	switch inference.ReasoningType {
	case TypeRuleBased:
		factors = append(factors, "Based on established reasoning rules")
	case TypeGraph:
		factors = append(factors, "Based on knowledge graph relationships")
	}

	return factors
}

/*
Stats summarizes the engine: rule count, cached query count and rule
counts per type.
*/
type Stats struct {
	TotalRules       int            `json:"total_rules"`
	CachedInferences int            `json:"cached_inferences"`
	RuleTypes        map[string]int `json:"rule_types"`
}

// Statistics returns engine statistics.
func (e *Engine) Statistics() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := Stats{
		TotalRules:       len(e.rules),
		CachedInferences: len(e.cache),
		RuleTypes:        make(map[string]int),
	}
	for _, rule := range e.rules {
		stats.RuleTypes[rule.Type]++
	}
	return stats
}
