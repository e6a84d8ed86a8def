package graph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/kgraph/pkg/errors"
)

// Persisted artifact names under the store's memory path.
const (
	graphFile   = "knowledge_graph.json"
	entityFile  = "entities.json"
	indexFile   = "kg_indexes.json"
	legacyFile  = "knowledge_graph.pkl"
	tmpSuffix   = ".tmp"
	filePerm    = 0644
	memDirPerm  = 0755
)

/*
nodeLinkDoc is the node-link serialization of the graph view: nodes carry
the full entity payloads, links carry the full relation payloads plus the
multigraph edge key.
*/
type nodeLinkDoc struct {
	Directed   bool       `json:"directed"`
	Multigraph bool       `json:"multigraph"`
	Graph      struct{}   `json:"graph"`
	Nodes      []Entity   `json:"nodes"`
	Links      []linkRec  `json:"links"`
}

type linkRec struct {
	Relation
	Source string `json:"source"`
	Target string `json:"target"`
	Key    string `json:"key"`
}

type indexDoc struct {
	TypeIndex      map[string][]string            `json:"type_index"`
	AttributeIndex map[string]map[string][]string `json:"attribute_index"`
}

/*
saveLocked rewrites the three persisted artifacts — graph, entities,
indexes, in that order — each through a write-to-temp-then-rename. Any
failure is logged and swallowed: the in-memory state is not rolled back,
so memory and disk may diverge until the next successful save.
*/
func (s *Store) saveLocked() {
	if s.memoryPath == "" {
		return
	}

	written := make([]string, 0, 3)
	fail := func(name string, err error) {
		log.Warn("failed to save knowledge graph",
			"file", name,
			"error", errors.ErrPersistence.WithMessagef("%v", err),
		)
		for _, tmp := range written {
			_ = os.Remove(tmp)
		}
	}

	steps := []struct {
		name string
		doc  any
	}{
		{graphFile, s.nodeLinkLocked()},
		{entityFile, s.entities},
		{indexFile, indexDoc{
			TypeIndex:      s.idx.typeIndex(),
			AttributeIndex: s.idx.attributeIndex(),
		}},
	}

	for _, step := range steps {
		path := filepath.Join(s.memoryPath, step.name)
		tmp := path + tmpSuffix

		data, err := json.MarshalIndent(step.doc, "", "  ")
		if err != nil {
			fail(step.name, err)
			return
		}
		if err := os.WriteFile(tmp, data, filePerm); err != nil {
			fail(step.name, err)
			return
		}
		written = append(written, tmp)
		if err := os.Rename(tmp, path); err != nil {
			fail(step.name, err)
			return
		}
	}
}

/*
load restores the store from disk. A missing snapshot is not an error. A
legacy pickle snapshot is refused outright — arbitrary deserialization is
disallowed — and the store starts empty. Corrupt files degrade the same
way, with a warning.
*/
func (s *Store) load() error {
	if s.memoryPath == "" {
		return nil
	}
	if err := os.MkdirAll(s.memoryPath, memDirPerm); err != nil {
		return errors.ErrPersistence.WithMessagef(
			"failed to create memory directory %s: %v", s.memoryPath, err,
		)
	}

	graphPath := filepath.Join(s.memoryPath, graphFile)
	if _, err := os.Stat(graphPath); err != nil {
		if _, legacyErr := os.Stat(filepath.Join(s.memoryPath, legacyFile)); legacyErr == nil {
			log.Warn("legacy pickle snapshot detected, refusing to load it",
				"path", filepath.Join(s.memoryPath, legacyFile),
				"error", errors.ErrLegacyFormat,
			)
		}
		return nil
	}

	var doc nodeLinkDoc
	if err := readJSON(graphPath, &doc); err != nil {
		log.Warn("failed to load knowledge graph", "error", err)
		return nil
	}

	var entities map[string]*Entity
	if err := readJSON(filepath.Join(s.memoryPath, entityFile), &entities); err != nil {
		log.Warn("failed to load entities", "error", err)
		return nil
	}

	s.entities = entities
	if s.entities == nil {
		s.entities = make(map[string]*Entity)
	}

	s.relations = make(map[string]*Relation, len(doc.Links))
	for _, link := range doc.Links {
		relation := link.Relation
		s.relations[relation.ID] = &relation
	}

	// The adjacency view and both indexes are derived state: rebuild from
	// the canonical maps rather than trusting kg_indexes.json.
	s.rebuildViewsLocked()

	log.Info("knowledge graph loaded from disk",
		"entities", len(s.entities),
		"relations", len(s.relations),
	)
	return nil
}

// rebuildViewsLocked recomputes the adjacency lists and both secondary
// indexes from the entity and relation maps.
func (s *Store) rebuildViewsLocked() {
	s.adj = make(map[string][]edgeRef, len(s.entities))
	for id := range s.entities {
		s.adj[id] = nil
	}
	for id, relation := range s.relations {
		if _, ok := s.entities[relation.SourceID]; !ok {
			continue
		}
		s.adj[relation.SourceID] = append(s.adj[relation.SourceID], edgeRef{
			RelationID: id,
			TargetID:   relation.TargetID,
		})
	}
	s.idx.rebuild(s.entities)
}

// nodeLinkLocked builds the node-link document with nodes and links sorted
// by id so snapshots are byte-stable for identical state.
func (s *Store) nodeLinkLocked() nodeLinkDoc {
	doc := nodeLinkDoc{
		Directed:   true,
		Multigraph: true,
		Nodes:      make([]Entity, 0, len(s.entities)),
		Links:      make([]linkRec, 0, len(s.relations)),
	}

	for _, entity := range s.entities {
		doc.Nodes = append(doc.Nodes, entity.clone())
	}
	sort.Slice(doc.Nodes, func(i, j int) bool {
		return doc.Nodes[i].ID < doc.Nodes[j].ID
	})

	for _, relation := range s.relations {
		doc.Links = append(doc.Links, linkRec{
			Relation: relation.clone(),
			Source:   relation.SourceID,
			Target:   relation.TargetID,
			Key:      relation.ID,
		})
	}
	sort.Slice(doc.Links, func(i, j int) bool {
		return doc.Links[i].ID < doc.Links[j].ID
	})

	return doc
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
