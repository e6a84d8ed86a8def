package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Extraction methods recorded on candidates.
const (
	MethodPattern      = "pattern"
	MethodDictionary   = "dictionary"
	MethodCooccurrence = "cooccurrence"
)

/*
Entity is a candidate entity span found in raw text. It is an extraction
artifact, not a stored graph entity: the caller decides what to insert.
*/
type Entity struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"extraction_method"`
}

type typedPatterns struct {
	entityType string
	patterns   []*regexp.Regexp
}

type dictionary struct {
	category string
	terms    []string
}

/*
EntityExtractor finds candidate entities with a fixed table of per-type
regex patterns plus curated term dictionaries matched as plain substrings.
It is stateless and safe for concurrent use.
*/
type EntityExtractor struct {
	patterns     []typedPatterns
	dictionaries []dictionary
}

// NewEntityExtractor compiles the built-in pattern table.
func NewEntityExtractor() *EntityExtractor {
	compile := func(entityType string, exprs ...string) typedPatterns {
		tp := typedPatterns{entityType: entityType}
		for _, expr := range exprs {
			tp.patterns = append(tp.patterns, regexp.MustCompile(expr))
		}
		return tp
	}

	return &EntityExtractor{
		patterns: []typedPatterns{
			compile("person",
				`\b[A-Z][a-z]+ [A-Z][a-z]+\b`,
				`\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+[A-Z][a-z]+ [A-Z][a-z]+\b`,
			),
			compile("organization",
				`\b[A-Z][a-z]+ (?:Inc|Ltd|Corp|Company|Corporation|LLC|LTD)\b`,
				`\b[A-Z][a-z]+ (?:University|College|Institute)\b`,
				`\b[A-Z][a-z]+ [A-Z][a-z]+ (?:Technologies|Systems|Solutions)\b`,
			),
			compile("location",
				`\b[A-Z][a-z]+, [A-Z]{2}\b`,
				`\b[A-Z][a-z]+, [A-Z][a-z]+\b`,
				`\b(?:North|South|East|West) [A-Z][a-z]+\b`,
			),
			compile("date",
				`\b\d{1,2}/\d{1,2}/\d{4}\b`,
				`\b\d{4}-\d{2}-\d{2}\b`,
				`\b(?:January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}, \d{4}\b`,
			),
			compile("email",
				`\b[\w.-]+@[\w.-]+\.\w+\b`,
			),
			compile("phone",
				`\b\d{3}-\d{3}-\d{4}\b`,
				`\(\d{3}\) \d{3}-\d{4}`,
				`\b\d{3}\.\d{3}\.\d{4}\b`,
			),
			compile("url",
				`https?://(?:[-\w.])+(?:[:\d]+)?(?:/(?:[\w/_.])*(?:\?(?:[\w&=%.])*)?(?:#(?:\w*))?)?`,
			),
			compile("money",
				`\$\d+(?:,\d{3})*(?:\.\d{2})?`,
				`\b\d+(?:,\d{3})*(?:\.\d{2})?\s*(?:dollars?|USD|bucks?)\b`,
			),
			compile("product",
				`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:Pro|Max|Plus|Ultra|Lite|Mini)\b`,
				`\b[A-Z][a-z]+\d+(?:\s+[A-Z][a-z]+)?\b`,
			),
		},
		dictionaries: []dictionary{
			{"technology", []string{
				"Python", "JavaScript", "Java", "C++", "Ruby", "Go", "Rust",
				"TensorFlow", "PyTorch", "Keras", "Scikit-learn", "Pandas",
				"Machine Learning", "Deep Learning", "Neural Networks", "AI",
				"Docker", "Kubernetes", "AWS", "Azure", "Google Cloud",
			}},
			{"science", []string{
				"Physics", "Chemistry", "Biology", "Mathematics", "Statistics",
				"Einstein", "Newton", "Darwin", "Curie", "Hawking",
			}},
			{"business", []string{
				"CEO", "CTO", "CFO", "Manager", "Director", "President",
				"Revenue", "Profit", "Loss", "Investment", "Portfolio",
			}},
		},
	}
}

/*
Extract returns the candidate entities found in text, de-duplicated by
exact span and sorted by start offset. Pattern hits carry confidence 0.8,
dictionary hits 0.9.
*/
func (x *EntityExtractor) Extract(text string) []Entity {
	var entities []Entity

	for _, tp := range x.patterns {
		for _, pattern := range tp.patterns {
			for _, loc := range pattern.FindAllStringIndex(text, -1) {
				entities = append(entities, Entity{
					Type:       tp.entityType,
					Text:       text[loc[0]:loc[1]],
					Start:      loc[0],
					End:        loc[1],
					Confidence: 0.8,
					Method:     MethodPattern,
				})
			}
		}
	}

	for _, dict := range x.dictionaries {
		for _, term := range dict.terms {
			start := strings.Index(text, term)
			if start < 0 {
				continue
			}
			entities = append(entities, Entity{
				Type:       dict.category,
				Text:       term,
				Start:      start,
				End:        start + len(term),
				Confidence: 0.9,
				Method:     MethodDictionary,
			})
		}
	}

	// Duplicate spans collapse on exact (start, end) equality; overlapping
	// but unequal spans are all kept.
	type span struct{ start, end int }
	seen := make(map[span]struct{}, len(entities))
	unique := entities[:0]
	for _, entity := range entities {
		key := span{entity.Start, entity.End}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, entity)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Start < unique[j].Start
	})
	return unique
}

/*
EntityStats summarizes an extraction run.
*/
type EntityStats struct {
	TotalEntities     int            `json:"total_entities"`
	TypeDistribution  map[string]int `json:"type_distribution"`
	AverageConfidence float64        `json:"average_confidence"`
	ExtractionMethods map[string]int `json:"extraction_methods"`
}

// Statistics aggregates counts and confidence over extracted entities.
func (x *EntityExtractor) Statistics(entities []Entity) EntityStats {
	stats := EntityStats{
		TotalEntities:     len(entities),
		TypeDistribution:  make(map[string]int),
		ExtractionMethods: make(map[string]int),
	}
	if len(entities) == 0 {
		return stats
	}

	sum := 0.0
	for _, entity := range entities {
		stats.TypeDistribution[entity.Type]++
		stats.ExtractionMethods[entity.Method]++
		sum += entity.Confidence
	}
	stats.AverageConfidence = sum / float64(len(entities))
	return stats
}
