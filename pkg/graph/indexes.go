package graph

import "sort"

/*
indexes holds the two secondary indexes over the entity map. Both are
derived views: they can always be rebuilt from the canonical entity map and
must never reference an id that is not in it.
*/
type indexes struct {
	// entity type -> set of entity ids
	byType map[string]map[string]struct{}
	// attribute name -> attribute value -> set of entity ids
	byAttr map[string]map[string]map[string]struct{}
}

func newIndexes() *indexes {
	return &indexes{
		byType: make(map[string]map[string]struct{}),
		byAttr: make(map[string]map[string]map[string]struct{}),
	}
}

func (idx *indexes) add(entity *Entity) {
	if idx.byType[entity.Type] == nil {
		idx.byType[entity.Type] = make(map[string]struct{})
	}
	idx.byType[entity.Type][entity.ID] = struct{}{}

	for name, value := range entity.Attributes {
		if idx.byAttr[name] == nil {
			idx.byAttr[name] = make(map[string]map[string]struct{})
		}
		if idx.byAttr[name][value] == nil {
			idx.byAttr[name][value] = make(map[string]struct{})
		}
		idx.byAttr[name][value][entity.ID] = struct{}{}
	}
}

func (idx *indexes) remove(entity *Entity) {
	if ids := idx.byType[entity.Type]; ids != nil {
		delete(ids, entity.ID)
		if len(ids) == 0 {
			delete(idx.byType, entity.Type)
		}
	}

	for name, value := range entity.Attributes {
		values := idx.byAttr[name]
		if values == nil {
			continue
		}
		if ids := values[value]; ids != nil {
			delete(ids, entity.ID)
			if len(ids) == 0 {
				delete(values, value)
			}
		}
		if len(values) == 0 {
			delete(idx.byAttr, name)
		}
	}
}

// rebuild discards both indexes and repopulates them from the entity map.
func (idx *indexes) rebuild(entities map[string]*Entity) {
	idx.byType = make(map[string]map[string]struct{})
	idx.byAttr = make(map[string]map[string]map[string]struct{})
	for _, entity := range entities {
		idx.add(entity)
	}
}

// typeIndex returns the serializable form of the type index with sorted id
// lists so persisted snapshots are deterministic.
func (idx *indexes) typeIndex() map[string][]string {
	out := make(map[string][]string, len(idx.byType))
	for entityType, ids := range idx.byType {
		out[entityType] = sortedKeys(ids)
	}
	return out
}

// attributeIndex returns the serializable form of the attribute index.
func (idx *indexes) attributeIndex() map[string]map[string][]string {
	out := make(map[string]map[string][]string, len(idx.byAttr))
	for name, values := range idx.byAttr {
		out[name] = make(map[string][]string, len(values))
		for value, ids := range values {
			out[name][value] = sortedKeys(ids)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
