package graph

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/theapemachine/kgraph/pkg/errors"
)

/*
Entity is a named, typed node in the knowledge graph. Entities are owned by
the Store; callers always receive copies.
*/
type Entity struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Attributes   map[string]string `json:"attributes"`
	Description  string            `json:"description"`
	Importance   float64           `json:"importance"`
	Confidence   float64           `json:"confidence"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	AccessCount  int               `json:"access_count"`
}

/*
Relation is a typed, directed edge between two live entities. A bidirectional
relation materializes a second record with id "reverse_<id>" and swapped
endpoints; the pair is created and removed together.
*/
type Relation struct {
	ID            string            `json:"id"`
	SourceID      string            `json:"source_id"`
	TargetID      string            `json:"target_id"`
	Type          string            `json:"type"`
	Attributes    map[string]string `json:"attributes"`
	Importance    float64           `json:"importance"`
	Confidence    float64           `json:"confidence"`
	CreatedAt     time.Time         `json:"created_at"`
	Bidirectional bool              `json:"bidirectional"`
}

// reversePrefix names the mirrored record of a bidirectional relation.
const reversePrefix = "reverse_"

/*
EntityPayload is the insert-time shape of an entity. Attributes accept
string, numeric and bool values and are coerced to strings at the boundary;
anything else is rejected. Importance and Confidence are optional and
default to 0.5 and 1.0.
*/
type EntityPayload struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Description string         `json:"description,omitempty"`
	Importance  *float64       `json:"importance,omitempty"`
	Confidence  *float64       `json:"confidence,omitempty"`
}

/*
RelationPayload is the insert-time shape of a relation.
*/
type RelationPayload struct {
	SourceID      string         `json:"source_id"`
	TargetID      string         `json:"target_id"`
	Type          string         `json:"type"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	Importance    *float64       `json:"importance,omitempty"`
	Confidence    *float64       `json:"confidence,omitempty"`
	Bidirectional bool           `json:"bidirectional,omitempty"`
}

/*
IDGen produces a new unique identifier with the given prefix. The generator
is injected into the Store so tests can use deterministic counters.
*/
type IDGen func(prefix string) string

// NewUUIDGen returns the production id generator, backed by random UUIDs.
func NewUUIDGen() IDGen {
	return func(prefix string) string {
		return prefix + "_" + uuid.NewString()
	}
}

/*
CoerceAttributes converts a loosely typed attribute map into the closed
string form stored on entities and relations. Strings pass through, numbers
and bools are formatted, everything else fails with ErrInvalidPayload.
*/
func CoerceAttributes(in map[string]any) (map[string]string, error) {
	if len(in) == 0 {
		return map[string]string{}, nil
	}

	out := make(map[string]string, len(in))

	for key, value := range in {
		switch v := value.(type) {
		case string:
			out[key] = v
		case bool:
			out[key] = strconv.FormatBool(v)
		case int:
			out[key] = strconv.Itoa(v)
		case int64:
			out[key] = strconv.FormatInt(v, 10)
		case float32:
			out[key] = strconv.FormatFloat(float64(v), 'f', -1, 32)
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return nil, errors.ErrInvalidPayload.WithMessagef(
				"attribute %q has unsupported type %T", key, value,
			)
		}
	}

	return out, nil
}

// clamp01 keeps importance/confidence scores inside [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// scoreOrDefault resolves an optional payload score.
func scoreOrDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return clamp01(*v)
}

// clone returns a deep copy the caller may mutate freely.
func (e *Entity) clone() Entity {
	out := *e
	out.Attributes = make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		out.Attributes[k] = v
	}
	return out
}

// clone returns a deep copy the caller may mutate freely.
func (r *Relation) clone() Relation {
	out := *r
	out.Attributes = make(map[string]string, len(r.Attributes))
	for k, v := range r.Attributes {
		out.Attributes[k] = v
	}
	return out
}
