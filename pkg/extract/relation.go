package extract

import (
	"regexp"
	"sort"
	"strings"
)

// cooccurrenceWindow is the character distance within which two entities
// are linked by the fallback pass when no pattern matched.
const cooccurrenceWindow = 50

/*
Relation is a candidate relation between two extracted entities.
*/
type Relation struct {
	Type       string  `json:"type"`
	Source     Entity  `json:"source"`
	Target     Entity  `json:"target"`
	SourceText string  `json:"source_text"`
	TargetText string  `json:"target_text"`
	Confidence float64 `json:"confidence"`
	Distance   int     `json:"distance,omitempty"`
	Method     string  `json:"extraction_method"`
}

type relationPatterns struct {
	relationType string
	patterns     []*regexp.Regexp
}

/*
RelationExtractor finds relations between previously extracted entities
using a table of per-type regex templates capturing (source, target) text,
with a co-occurrence fallback for entity pairs no pattern covered. It is
stateless and safe for concurrent use.
*/
type RelationExtractor struct {
	patterns   []relationPatterns
	baseWeight map[string]float64
}

// NewRelationExtractor compiles the built-in relation templates.
func NewRelationExtractor() *RelationExtractor {
	compile := func(relationType string, exprs ...string) relationPatterns {
		rp := relationPatterns{relationType: relationType}
		for _, expr := range exprs {
			rp.patterns = append(rp.patterns, regexp.MustCompile(`(?i)`+expr))
		}
		return rp
	}

	return &RelationExtractor{
		patterns: []relationPatterns{
			compile("works_for",
				`(\w+(?:\s+\w+)*)\s+(?:works for|is employed by|is a\s+\w+\s+at)\s+(\w+(?:\s+\w+)*)`,
				`(\w+(?:\s+\w+)*)'?s?\s+(?:job|position|role)\s+(?:is|at)?\s+(\w+(?:\s+\w+)*)`,
			),
			compile("manages",
				`(\w+(?:\s+\w+)*)\s+(?:manages|is the manager of|supervises)\s+(\w+(?:\s+\w+)*)`,
				`(\w+(?:\s+\w+)*)'?s?\s+manager\s+(?:is)?\s+(\w+(?:\s+\w+)*)`,
			),
			compile("located_in",
				`(\w+(?:\s+\w+)*)\s+(?:is located in|is in|can be found in)\s+(\w+(?:\s+\w+)*)`,
				`(\w+(?:\s+\w+)*)\s+(?:headquartered|based)\s+in\s+(\w+(?:\s+\w+)*)`,
			),
			compile("headquarters_in",
				`(\w+(?:\s+\w+)*)'?s?\s+headquarters\s+(?:is|are)?\s+in\s+(\w+(?:\s+\w+)*)`,
			),
			compile("owns",
				`(\w+(?:\s+\w+)*)\s+(?:owns|possesses|has)\s+(\w+(?:\s+\w+)*)`,
				`(\w+(?:\s+\w+)*)\s+(?:is owned by|belongs to)\s+(\w+(?:\s+\w+)*)`,
			),
			compile("subsidiary_of",
				`(\w+(?:\s+\w+)*)\s+(?:is a subsidiary of|is owned by)\s+(\w+(?:\s+\w+)*)`,
			),
			compile("parent_of",
				`(\w+(?:\s+\w+)*)\s+(?:is the parent of|has a child named|parent of)\s+(\w+(?:\s+\w+)*)`,
			),
			compile("child_of",
				`(\w+(?:\s+\w+)*)\s+(?:is the child of|son of|daughter of)\s+(\w+(?:\s+\w+)*)`,
			),
			compile("spouse_of",
				`(\w+(?:\s+\w+)*)\s+(?:is married to|spouse of|husband of|wife of)\s+(\w+(?:\s+\w+)*)`,
			),
			compile("created_by",
				`(\w+(?:\s+\w+)*)\s+(?:was created by|was developed by|was made by|was built by)\s+(\w+(?:\s+\w+)*)`,
				`(\w+(?:\s+\w+)*)\s+(?:created|developed|made|built)\s+(\w+(?:\s+\w+)*)`,
			),
			compile("produces",
				`(\w+(?:\s+\w+)*)\s+(?:produces|manufactures|makes)\s+(\w+(?:\s+\w+)*)`,
			),
			compile("graduated_from",
				`(\w+(?:\s+\w+)*)\s+(?:graduated from|has a degree from)\s+(\w+(?:\s+\w+)*)`,
			),
			compile("works_at",
				`(\w+(?:\s+\w+)*)\s+(?:works at|is a\s+\w+\s+at)\s+(\w+(?:\s+\w+)*)`,
			),
			compile("part_of",
				`(\w+(?:\s+\w+)*)\s+(?:is part of|belongs to)\s+(\w+(?:\s+\w+)*)`,
			),
			compile("example_of",
				`(\w+(?:\s+\w+)*)\s+(?:is an example of|is a type of)\s+(\w+(?:\s+\w+)*)`,
			),
			compile("member_of",
				`(\w+(?:\s+\w+)*)\s+(?:is a member of|belongs to)\s+(\w+(?:\s+\w+)*)`,
			),
		},
		baseWeight: map[string]float64{
			"works_for":      0.8,
			"manages":        0.7,
			"located_in":     0.8,
			"owns":           0.7,
			"created_by":     0.8,
			"graduated_from": 0.9,
			"part_of":        0.6,
		},
	}
}

// Type pairs considered reliable enough to boost confidence by 1.2x.
var reliablePairs = map[[2]string]struct{}{
	{"person", "organization"}:       {},
	{"organization", "location"}:     {},
	{"person", "location"}:           {},
	{"organization", "organization"}: {},
}

/*
Extract returns candidate relations between the given entities, pattern
matches first, then low-confidence co-occurrence links for close pairs.
Duplicates collapse on (source text, target text, type); the result is
sorted descending by confidence.
*/
func (x *RelationExtractor) Extract(text string, entities []Entity) []Relation {
	var relations []Relation

	for _, rp := range x.patterns {
		for _, pattern := range rp.patterns {
			for _, match := range pattern.FindAllStringSubmatch(text, -1) {
				if len(match) < 3 {
					continue
				}
				sourceText := strings.TrimSpace(match[1])
				targetText := strings.TrimSpace(match[2])

				source, sourceOK := bestEntityMatch(sourceText, entities)
				target, targetOK := bestEntityMatch(targetText, entities)
				if !sourceOK || !targetOK {
					continue
				}

				base, ok := x.baseWeight[rp.relationType]
				if !ok {
					base = 0.5
				}

				relations = append(relations, Relation{
					Type:       rp.relationType,
					Source:     source,
					Target:     target,
					SourceText: sourceText,
					TargetText: targetText,
					Confidence: relationConfidence(sourceText, targetText, source, target, base),
					Method:     MethodPattern,
				})
			}
		}
	}

	relations = append(relations, cooccurrenceRelations(text, entities)...)

	type key struct{ source, target, relationType string }
	seen := make(map[key]struct{}, len(relations))
	unique := relations[:0]
	for _, relation := range relations {
		k := key{relation.SourceText, relation.TargetText, relation.Type}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, relation)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Confidence > unique[j].Confidence
	})
	return unique
}

/*
bestEntityMatch resolves captured text against the entity list: exact
(case-insensitive) match first, then the best partial containment whose
length ratio exceeds 0.5.
*/
func bestEntityMatch(text string, entities []Entity) (Entity, bool) {
	needle := strings.ToLower(text)
	var best Entity
	bestScore := 0.0

	for _, entity := range entities {
		entityText := strings.ToLower(entity.Text)
		if entityText == needle {
			return entity, true
		}

		var score float64
		switch {
		case strings.Contains(entityText, needle):
			score = float64(len(needle)) / float64(len(entityText))
		case strings.Contains(needle, entityText):
			score = float64(len(entityText)) / float64(len(needle))
		default:
			continue
		}
		if score > bestScore {
			bestScore = score
			best = entity
		}
	}

	if bestScore > 0.5 {
		return best, true
	}
	return Entity{}, false
}

// relationConfidence weights the base score by how much of each matched
// entity's text the captured group covers, boosted for reliable type
// pairs, clamped to [0, 1].
func relationConfidence(sourceText, targetText string, source, target Entity, base float64) float64 {
	sourceRatio := float64(len(sourceText)) / float64(len(source.Text))
	targetRatio := float64(len(targetText)) / float64(len(target.Text))
	confidence := base * (sourceRatio + targetRatio) / 2

	if _, ok := reliablePairs[[2]string{source.Type, target.Type}]; ok {
		confidence *= 1.2
	}

	if confidence > 1 {
		return 1
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}

// cooccurrenceRelations links any two entities within the fixed character
// window with a low-confidence, type-inferred generic relation.
func cooccurrenceRelations(text string, entities []Entity) []Relation {
	var relations []Relation
	lower := strings.ToLower(text)

	for i, first := range entities {
		for _, second := range entities[i+1:] {
			distance := first.Start - second.Start
			if distance < 0 {
				distance = -distance
			}
			if distance > cooccurrenceWindow {
				continue
			}

			relationType := inferRelationType(first, second, lower)
			relations = append(relations, Relation{
				Type:       relationType,
				Source:     first,
				Target:     second,
				SourceText: first.Text,
				TargetText: second.Text,
				Confidence: 0.4,
				Distance:   distance,
				Method:     MethodCooccurrence,
			})
		}
	}
	return relations
}

func inferRelationType(first, second Entity, lowerText string) string {
	containsAny := func(words ...string) bool {
		for _, word := range words {
			if strings.Contains(lowerText, word) {
				return true
			}
		}
		return false
	}

	pair := func(a, b string) bool {
		return (first.Type == a && second.Type == b) ||
			(first.Type == b && second.Type == a)
	}

	switch {
	case pair("person", "organization") && containsAny("work", "job", "employee", "staff"):
		if first.Type == "person" {
			return "works_for"
		}
		return "employs"
	case pair("organization", "location") && containsAny("located", "based", "headquarters"):
		if first.Type == "organization" {
			return "located_in"
		}
		return "contains"
	case first.Type == "person" && second.Type == "person" &&
		containsAny("family", "married", "parent", "child"):
		return "related_to"
	default:
		return "associated_with"
	}
}

/*
RelationStats summarizes an extraction run.
*/
type RelationStats struct {
	TotalRelations          int            `json:"total_relations"`
	TypeDistribution        map[string]int `json:"type_distribution"`
	AverageConfidence       float64        `json:"average_confidence"`
	ExtractionMethods       map[string]int `json:"extraction_methods"`
	HighConfidenceRelations int            `json:"high_confidence_relations"`
}

// Statistics aggregates counts and confidence over extracted relations.
func (x *RelationExtractor) Statistics(relations []Relation) RelationStats {
	stats := RelationStats{
		TotalRelations:    len(relations),
		TypeDistribution:  make(map[string]int),
		ExtractionMethods: make(map[string]int),
	}
	if len(relations) == 0 {
		return stats
	}

	sum := 0.0
	for _, relation := range relations {
		stats.TypeDistribution[relation.Type]++
		stats.ExtractionMethods[relation.Method]++
		sum += relation.Confidence
		if relation.Confidence > 0.7 {
			stats.HighConfidenceRelations++
		}
	}
	stats.AverageConfidence = sum / float64(len(relations))
	return stats
}
