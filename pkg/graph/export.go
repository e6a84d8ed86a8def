package graph

import "time"

/*
Stats summarizes the store for monitoring and for the export document.
*/
type Stats struct {
	TotalEntities             int       `json:"total_entities"`
	TotalRelations            int       `json:"total_relations"`
	GraphNodes                int       `json:"graph_nodes"`
	GraphEdges                int       `json:"graph_edges"`
	EntityTypes               int       `json:"entity_types"`
	IndexedAttributes         int       `json:"indexed_attributes"`
	CreationTime              time.Time `json:"creation_time"`
	LastUpdated               time.Time `json:"last_updated"`
	AverageEntityImportance   float64   `json:"average_entity_importance"`
	AverageRelationImportance float64   `json:"average_relation_importance"`
}

/*
ExportDoc is the single JSON-serializable structure produced by Export and
consumed by Import. It carries the canonical maps, both indexes and a stats
snapshot, and is meant for cross-store backup, not incremental sync.
*/
type ExportDoc struct {
	Entities       map[string]Entity              `json:"entities"`
	Relations      map[string]Relation            `json:"relations"`
	TypeIndex      map[string][]string            `json:"type_index"`
	AttributeIndex map[string]map[string][]string `json:"attribute_index"`
	Statistics     Stats                          `json:"statistics"`
}

// Statistics returns aggregate statistics about the store.
func (s *Store) Statistics() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *Store) statsLocked() Stats {
	edges := 0
	for _, refs := range s.adj {
		edges += len(refs)
	}

	stats := Stats{
		TotalEntities:     len(s.entities),
		TotalRelations:    len(s.relations),
		GraphNodes:        len(s.adj),
		GraphEdges:        edges,
		EntityTypes:       len(s.idx.byType),
		IndexedAttributes: len(s.idx.byAttr),
		CreationTime:      s.createdAt,
		LastUpdated:       s.lastUpdated,
	}

	if len(s.entities) > 0 {
		sum := 0.0
		for _, entity := range s.entities {
			sum += entity.Importance
		}
		stats.AverageEntityImportance = sum / float64(len(s.entities))
	}
	if len(s.relations) > 0 {
		sum := 0.0
		for _, relation := range s.relations {
			sum += relation.Importance
		}
		stats.AverageRelationImportance = sum / float64(len(s.relations))
	}

	return stats
}

/*
Export produces the full-graph backup document.
*/
func (s *Store) Export() *ExportDoc {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := &ExportDoc{
		Entities:       make(map[string]Entity, len(s.entities)),
		Relations:      make(map[string]Relation, len(s.relations)),
		TypeIndex:      s.idx.typeIndex(),
		AttributeIndex: s.idx.attributeIndex(),
		Statistics:     s.statsLocked(),
	}
	for id, entity := range s.entities {
		doc.Entities[id] = entity.clone()
	}
	for id, relation := range s.relations {
		doc.Relations[id] = relation.clone()
	}
	return doc
}

/*
Import replaces the store contents with the document's entities and
relations, rebuilds the adjacency view and both indexes from the canonical
maps, and persists the result. The document's own index sections are
ignored: indexes are derived state.
*/
func (s *Store) Import(doc *ExportDoc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities = make(map[string]*Entity, len(doc.Entities))
	for id, entity := range doc.Entities {
		clone := entity.clone()
		s.entities[id] = &clone
	}

	s.relations = make(map[string]*Relation, len(doc.Relations))
	for id, relation := range doc.Relations {
		clone := relation.clone()
		s.relations[id] = &clone
	}

	s.rebuildViewsLocked()
	s.lastUpdated = s.clock()
	s.saveLocked()
}
