package graph

import "sort"

/*
RelatedEntity is a traversal hit: an entity reachable from the source
within max depth, with its shortest-path distance and the 1/(distance+1)
strength decay used for ranking.
*/
type RelatedEntity struct {
	Entity   Entity  `json:"entity"`
	Distance int     `json:"relationship_distance"`
	Strength float64 `json:"relationship_strength"`
}

/*
FindRelated computes single-source shortest-path distances from entityID,
following relation direction, up to maxDepth hops. The graph may contain
cycles (bidirectional pairs are two directed edges), so the walk tracks
visited distances, not just visited flags. When relationTypes is non-empty
a reachable entity is kept only if at least one edge on its shortest path
has a type in the set. Results are access-tracked reads, sorted descending
by strength.
*/
func (s *Store) FindRelated(entityID string, relationTypes []string, maxDepth int) []RelatedEntity {
	if maxDepth <= 0 {
		maxDepth = 2
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[entityID]; !ok {
		return nil
	}

	typeSet := make(map[string]struct{}, len(relationTypes))
	for _, relationType := range relationTypes {
		typeSet[relationType] = struct{}{}
	}

	// BFS over the directed adjacency view. parent records the shortest
	// path tree for the type filter check.
	distance := map[string]int{entityID: 0}
	parent := map[string]string{}
	queue := []string{entityID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if distance[current] >= maxDepth {
			continue
		}

		for _, edge := range s.adj[current] {
			if _, seen := distance[edge.TargetID]; seen {
				continue
			}
			distance[edge.TargetID] = distance[current] + 1
			parent[edge.TargetID] = current
			queue = append(queue, edge.TargetID)
		}
	}

	now := s.clock()
	var related []RelatedEntity

	for id, dist := range distance {
		if id == entityID {
			continue
		}
		entity, ok := s.entities[id]
		if !ok {
			continue
		}
		if len(typeSet) > 0 && !s.pathHasTypeLocked(id, entityID, parent, typeSet) {
			continue
		}

		entity.LastAccessed = now
		entity.AccessCount++
		related = append(related, RelatedEntity{
			Entity:   entity.clone(),
			Distance: dist,
			Strength: 1.0 / float64(dist+1),
		})
	}

	sort.Slice(related, func(i, j int) bool {
		if related[i].Strength != related[j].Strength {
			return related[i].Strength > related[j].Strength
		}
		return related[i].Entity.ID < related[j].Entity.ID
	})
	return related
}

// pathHasTypeLocked walks the BFS tree path from id back to the source and
// reports whether any hop carries an edge whose type is in the set. In a
// multigraph any parallel edge between a hop's endpoints may satisfy it.
func (s *Store) pathHasTypeLocked(id, sourceID string, parent map[string]string, typeSet map[string]struct{}) bool {
	for current := id; current != sourceID; {
		prev, ok := parent[current]
		if !ok {
			return false
		}
		for _, edge := range s.adj[prev] {
			if edge.TargetID != current {
				continue
			}
			relation, ok := s.relations[edge.RelationID]
			if !ok {
				continue
			}
			if _, match := typeSet[relation.Type]; match {
				return true
			}
		}
		current = prev
	}
	return false
}
