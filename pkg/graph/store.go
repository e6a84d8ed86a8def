package graph

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/kgraph/pkg/errors"
)

// Default capacity limits, matching the sizes the engine is tuned for.
const (
	DefaultMaxEntities  = 10000
	DefaultMaxRelations = 50000
)

/*
Config controls store construction. A zero MemoryPath disables persistence,
which is what the unit tests and the purely in-process embedding use.
*/
type Config struct {
	MemoryPath   string
	MaxEntities  int
	MaxRelations int
	IDGen        IDGen
	Clock        func() time.Time
}

type edgeRef struct {
	RelationID string
	TargetID   string
}

/*
Store owns the entity and relation maps, the adjacency view and the two
secondary indexes, and keeps all four consistent as one atomic unit under a
single writer lock. Every mutation is persisted synchronously before the
call returns; persistence failures are logged and never propagated, so the
in-memory state is authoritative (availability over durability).
*/
type Store struct {
	mu sync.RWMutex

	entities  map[string]*Entity
	relations map[string]*Relation
	// adj is the derived outgoing adjacency view, rebuildable from the
	// relation map. Edge direction matters: traversal follows it.
	adj map[string][]edgeRef
	idx *indexes

	maxEntities  int
	maxRelations int
	memoryPath   string
	idgen        IDGen
	clock        func() time.Time

	createdAt   time.Time
	lastUpdated time.Time
}

/*
NewStore builds a store from cfg and loads any persisted snapshot found at
cfg.MemoryPath. A legacy pickle file is refused with a warning and the
store starts empty.
*/
func NewStore(cfg Config) (*Store, error) {
	if cfg.MaxEntities <= 0 {
		cfg.MaxEntities = DefaultMaxEntities
	}
	if cfg.MaxRelations <= 0 {
		cfg.MaxRelations = DefaultMaxRelations
	}
	if cfg.IDGen == nil {
		cfg.IDGen = NewUUIDGen()
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}

	store := &Store{
		entities:     make(map[string]*Entity),
		relations:    make(map[string]*Relation),
		adj:          make(map[string][]edgeRef),
		idx:          newIndexes(),
		maxEntities:  cfg.MaxEntities,
		maxRelations: cfg.MaxRelations,
		memoryPath:   cfg.MemoryPath,
		idgen:        cfg.IDGen,
		clock:        cfg.Clock,
		createdAt:    cfg.Clock(),
		lastUpdated:  cfg.Clock(),
	}

	if err := store.load(); err != nil {
		return nil, err
	}

	log.Info("knowledge graph initialized",
		"entities", len(store.entities),
		"relations", len(store.relations),
	)

	return store, nil
}

/*
InsertEntity adds an entity, evicting the least important one first if the
store is at capacity. Missing fields get defaults (importance 0.5,
confidence 1.0, type "unknown"). The full state is persisted before the
generated id is returned.
*/
func (s *Store) InsertEntity(payload EntityPayload) (string, error) {
	attrs, err := CoerceAttributes(payload.Attributes)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entities) >= s.maxEntities {
		s.evictEntityLocked()
	}

	id := payload.ID
	if id == "" {
		id = s.idgen("entity")
	}

	now := s.clock()
	entityType := payload.Type
	if entityType == "" {
		entityType = "unknown"
	}

	entity := &Entity{
		ID:           id,
		Name:         payload.Name,
		Type:         entityType,
		Attributes:   attrs,
		Description:  payload.Description,
		Importance:   scoreOrDefault(payload.Importance, 0.5),
		Confidence:   scoreOrDefault(payload.Confidence, 1.0),
		CreatedAt:    now,
		LastAccessed: now,
	}

	s.entities[id] = entity
	if _, ok := s.adj[id]; !ok {
		s.adj[id] = nil
	}
	s.idx.add(entity)

	s.lastUpdated = now
	s.saveLocked()

	log.Debug("added entity", "id", id, "name", entity.Name, "type", entity.Type)
	return id, nil
}

/*
InsertRelation adds a relation between two live entities, failing with
ErrInvalidReference (and mutating nothing) when either endpoint is missing.
A bidirectional relation also materializes its reverse_<id> twin.
*/
func (s *Store) InsertRelation(payload RelationPayload) (string, error) {
	attrs, err := CoerceAttributes(payload.Attributes)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[payload.SourceID]; !ok {
		return "", errors.ErrInvalidReference.WithMessagef(
			"source entity %s does not exist", payload.SourceID,
		)
	}
	if _, ok := s.entities[payload.TargetID]; !ok {
		return "", errors.ErrInvalidReference.WithMessagef(
			"target entity %s does not exist", payload.TargetID,
		)
	}

	if len(s.relations) >= s.maxRelations {
		s.evictRelationLocked()
	}

	id := s.idgen("rel")
	now := s.clock()
	relationType := payload.Type
	if relationType == "" {
		relationType = "related_to"
	}

	relation := &Relation{
		ID:            id,
		SourceID:      payload.SourceID,
		TargetID:      payload.TargetID,
		Type:          relationType,
		Attributes:    attrs,
		Importance:    scoreOrDefault(payload.Importance, 0.5),
		Confidence:    scoreOrDefault(payload.Confidence, 1.0),
		CreatedAt:     now,
		Bidirectional: payload.Bidirectional,
	}

	s.relations[id] = relation
	s.adj[relation.SourceID] = append(s.adj[relation.SourceID], edgeRef{
		RelationID: id,
		TargetID:   relation.TargetID,
	})

	if relation.Bidirectional {
		reverse := relation.clone()
		reverse.ID = reversePrefix + id
		reverse.SourceID = relation.TargetID
		reverse.TargetID = relation.SourceID

		s.relations[reverse.ID] = &reverse
		s.adj[reverse.SourceID] = append(s.adj[reverse.SourceID], edgeRef{
			RelationID: reverse.ID,
			TargetID:   reverse.TargetID,
		})
	}

	s.lastUpdated = now
	s.saveLocked()

	log.Debug("added relation",
		"id", id,
		"source", relation.SourceID,
		"target", relation.TargetID,
		"type", relation.Type,
	)
	return id, nil
}

/*
GetEntity returns a copy of the entity. Reads are tracked: the access count
and last-accessed stamp are updated as an observable side effect.
*/
func (s *Store) GetEntity(id string) (Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}

	entity.LastAccessed = s.clock()
	entity.AccessCount++
	return entity.clone(), true
}

// GetRelation returns a copy of the relation. Relations are not
// access-tracked.
func (s *Store) GetRelation(id string) (Relation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	relation, ok := s.relations[id]
	if !ok {
		return Relation{}, false
	}
	return relation.clone(), true
}

/*
RemoveEntity removes the entity, every relation it participates in, its
index entries and its graph node, then persists. Returns false when the id
is absent.
*/
func (s *Store) RemoveEntity(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeEntityLocked(id) {
		return false
	}

	s.lastUpdated = s.clock()
	s.saveLocked()
	return true
}

/*
RemoveRelation removes the relation and, for a bidirectional pair, its
mirrored record, then persists. Either id of the pair removes both.
Returns false when the id is absent.
*/
func (s *Store) RemoveRelation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeRelationLocked(id) {
		return false
	}

	s.lastUpdated = s.clock()
	s.saveLocked()
	return true
}

/*
Cleanup sweeps out entities with importance below 0.1 that were never read,
and relations with importance below 0.1. It is a maintenance hook for an
external scheduler, not self-scheduled. Returns the removal counts.
*/
func (s *Store) Cleanup() (entitiesRemoved, relationsRemoved int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var staleEntities []string
	for id, entity := range s.entities {
		if entity.Importance < 0.1 && entity.AccessCount == 0 {
			staleEntities = append(staleEntities, id)
		}
	}
	for _, id := range staleEntities {
		if s.removeEntityLocked(id) {
			entitiesRemoved++
		}
	}

	var staleRelations []string
	for id, relation := range s.relations {
		if relation.Importance < 0.1 {
			staleRelations = append(staleRelations, id)
		}
	}
	for _, id := range staleRelations {
		if s.removeRelationLocked(id) {
			relationsRemoved++
		}
	}

	if entitiesRemoved > 0 || relationsRemoved > 0 {
		s.lastUpdated = s.clock()
		s.saveLocked()
	}

	log.Info("knowledge graph cleanup",
		"entities_removed", entitiesRemoved,
		"relations_removed", relationsRemoved,
	)
	return entitiesRemoved, relationsRemoved
}

/*
FindEntitiesByType returns up to limit entities of the given type through
the type index, ranked by importance.
*/
func (s *Store) FindEntitiesByType(entityType string, limit int) []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.idx.byType[entityType]
	return s.collectRankedLocked(ids, limit)
}

/*
FindEntitiesByAttribute returns up to limit entities carrying the given
attribute value through the attribute index, ranked by importance.
*/
func (s *Store) FindEntitiesByAttribute(name, value string, limit int) []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := s.idx.byAttr[name]
	if values == nil {
		return nil
	}
	return s.collectRankedLocked(values[value], limit)
}

// EntityCount returns the number of live entities.
func (s *Store) EntityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// RelationCount returns the number of live relation records, reverse
// records of bidirectional relations included.
func (s *Store) RelationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.relations)
}

// collectRankedLocked resolves an id set through access-tracked reads and
// sorts by importance, id as the deterministic tie-break.
func (s *Store) collectRankedLocked(ids map[string]struct{}, limit int) []Entity {
	out := make([]Entity, 0, len(ids))
	now := s.clock()

	for id := range ids {
		entity, ok := s.entities[id]
		if !ok {
			continue
		}
		entity.LastAccessed = now
		entity.AccessCount++
		out = append(out, entity.clone())
	}

	sortEntitiesByImportance(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// removeEntityLocked cascades through every incident relation before
// dropping the node, index entries and record. No persistence.
func (s *Store) removeEntityLocked(id string) bool {
	entity, ok := s.entities[id]
	if !ok {
		return false
	}

	s.idx.remove(entity)

	var incident []string
	for relationID, relation := range s.relations {
		if relation.SourceID == id || relation.TargetID == id {
			incident = append(incident, relationID)
		}
	}
	for _, relationID := range incident {
		s.removeRelationLocked(relationID)
	}

	delete(s.adj, id)
	delete(s.entities, id)
	return true
}

// removeRelationLocked drops a relation record, its adjacency edge, and the
// other half of a bidirectional pair. No persistence.
func (s *Store) removeRelationLocked(id string) bool {
	relation, ok := s.relations[id]
	if !ok {
		return false
	}

	s.dropEdgeLocked(relation.SourceID, id)
	delete(s.relations, id)

	// The pair id is derived by the reverse_<id> naming convention.
	pairID := reversePrefix + id
	if strings.HasPrefix(id, reversePrefix) {
		pairID = strings.TrimPrefix(id, reversePrefix)
	}
	if pair, ok := s.relations[pairID]; ok {
		s.dropEdgeLocked(pair.SourceID, pairID)
		delete(s.relations, pairID)
	}

	return true
}

func (s *Store) dropEdgeLocked(sourceID, relationID string) {
	edges := s.adj[sourceID]
	for i, edge := range edges {
		if edge.RelationID == relationID {
			s.adj[sourceID] = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}

// evictEntityLocked removes the entity minimizing
// importance * (1 + 0.1*access_count): low-importance, rarely-read
// entities go first. Ties break arbitrarily. Frees exactly one slot.
func (s *Store) evictEntityLocked() {
	if len(s.entities) == 0 {
		return
	}

	victimID := ""
	victimScore := 0.0
	for id, entity := range s.entities {
		score := entity.Importance * (1 + 0.1*float64(entity.AccessCount))
		if victimID == "" || score < victimScore {
			victimID = id
			victimScore = score
		}
	}

	log.Debug("evicting entity", "id", victimID, "score", victimScore)
	s.removeEntityLocked(victimID)
}

// evictRelationLocked removes the minimum-importance relation record.
func (s *Store) evictRelationLocked() {
	if len(s.relations) == 0 {
		return
	}

	victimID := ""
	victimScore := 0.0
	for id, relation := range s.relations {
		if victimID == "" || relation.Importance < victimScore {
			victimID = id
			victimScore = relation.Importance
		}
	}

	log.Debug("evicting relation", "id", victimID, "importance", victimScore)
	s.removeRelationLocked(victimID)
}
