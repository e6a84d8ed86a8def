package graph

import (
	"sort"
	"strings"
)

// ResultKind tags a query result as an entity or a relation hit.
type ResultKind string

const (
	ResultEntity   ResultKind = "entity"
	ResultRelation ResultKind = "relation"
)

/*
QueryResult is one ranked hit. Exactly one of Entity/Relation is set,
matching Kind. Relation hits carry the resolved endpoint names, falling
back to "Unknown" when an endpoint has been removed.
*/
type QueryResult struct {
	Kind       ResultKind `json:"kind"`
	Entity     *Entity    `json:"entity,omitempty"`
	Relation   *Relation  `json:"relation,omitempty"`
	SourceName string     `json:"source_name,omitempty"`
	TargetName string     `json:"target_name,omitempty"`
	Relevance  float64    `json:"relevance"`
}

// ID returns the id of the underlying record.
func (r QueryResult) ID() string {
	if r.Kind == ResultEntity {
		return r.Entity.ID
	}
	return r.Relation.ID
}

/*
Query runs a case-insensitive substring search over all entities and
relations and returns the top results by relevance. Entity relevance sums
1.0 for a name hit, 0.8 for a description hit, 0.5 per matching attribute
value and 0.3 for a type hit, plus importance*0.3. Relation relevance is
0.8 for a type hit plus importance*0.2. The importance term counts toward
the zero-score exclusion, so records with positive importance surface on
importance alone even without a text match; only true zero scores are
excluded. Ties break on ascending id so rankings are deterministic.
*/
func (s *Store) Query(text string, limit int) []QueryResult {
	if limit <= 0 {
		limit = 10
	}
	needle := strings.ToLower(text)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []QueryResult

	for _, entity := range s.entities {
		relevance := 0.0

		if strings.Contains(strings.ToLower(entity.Name), needle) {
			relevance += 1.0
		}
		if strings.Contains(strings.ToLower(entity.Description), needle) {
			relevance += 0.8
		}
		for _, value := range entity.Attributes {
			if strings.Contains(strings.ToLower(value), needle) {
				relevance += 0.5
			}
		}
		if strings.Contains(strings.ToLower(entity.Type), needle) {
			relevance += 0.3
		}
		relevance += entity.Importance * 0.3

		if relevance > 0 {
			clone := entity.clone()
			results = append(results, QueryResult{
				Kind:      ResultEntity,
				Entity:    &clone,
				Relevance: relevance,
			})
		}
	}

	for _, relation := range s.relations {
		relevance := 0.0

		if strings.Contains(strings.ToLower(relation.Type), needle) {
			relevance += 0.8
		}
		relevance += relation.Importance * 0.2

		if relevance > 0 {
			clone := relation.clone()
			results = append(results, QueryResult{
				Kind:       ResultRelation,
				Relation:   &clone,
				SourceName: s.entityNameLocked(relation.SourceID),
				TargetName: s.entityNameLocked(relation.TargetID),
				Relevance:  relevance,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].ID() < results[j].ID()
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (s *Store) entityNameLocked(id string) string {
	if entity, ok := s.entities[id]; ok {
		return entity.Name
	}
	return "Unknown"
}

// sortEntitiesByImportance orders descending by importance, ascending id
// as the tie-break.
func sortEntitiesByImportance(entities []Entity) {
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Importance != entities[j].Importance {
			return entities[i].Importance > entities[j].Importance
		}
		return entities[i].ID < entities[j].ID
	})
}
