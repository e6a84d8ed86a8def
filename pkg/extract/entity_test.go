package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findByText(entities []Entity, text string) (Entity, bool) {
	for _, entity := range entities {
		if entity.Text == text {
			return entity, true
		}
	}
	return Entity{}, false
}

func TestExtractPersonAndOrganization(t *testing.T) {
	x := NewEntityExtractor()

	entities := x.Extract("John Smith joined Acme Data Technologies last year.")

	person, ok := findByText(entities, "John Smith")
	require.True(t, ok)
	assert.Equal(t, "person", person.Type)
	assert.Equal(t, 0.8, person.Confidence)
	assert.Equal(t, MethodPattern, person.Method)

	org, ok := findByText(entities, "Acme Data Technologies")
	require.True(t, ok)
	assert.Equal(t, "organization", org.Type)
}

func TestExtractContactDetails(t *testing.T) {
	x := NewEntityExtractor()

	entities := x.Extract(
		"Reach us at info@example.com or 555-123-4567, see https://example.com/docs",
	)

	email, ok := findByText(entities, "info@example.com")
	require.True(t, ok)
	assert.Equal(t, "email", email.Type)

	phone, ok := findByText(entities, "555-123-4567")
	require.True(t, ok)
	assert.Equal(t, "phone", phone.Type)

	url, ok := findByText(entities, "https://example.com/docs")
	require.True(t, ok)
	assert.Equal(t, "url", url.Type)
}

func TestExtractDatesAndMoney(t *testing.T) {
	x := NewEntityExtractor()

	entities := x.Extract("The deal closed on 2024-03-15 for $1,250,000.50 in total.")

	date, ok := findByText(entities, "2024-03-15")
	require.True(t, ok)
	assert.Equal(t, "date", date.Type)

	money, ok := findByText(entities, "$1,250,000.50")
	require.True(t, ok)
	assert.Equal(t, "money", money.Type)
}

func TestExtractDictionaryTerms(t *testing.T) {
	x := NewEntityExtractor()

	entities := x.Extract("We use Python and TensorFlow, approved by the CEO.")

	python, ok := findByText(entities, "Python")
	require.True(t, ok)
	assert.Equal(t, "technology", python.Type)
	assert.Equal(t, 0.9, python.Confidence)
	assert.Equal(t, MethodDictionary, python.Method)

	ceo, ok := findByText(entities, "CEO")
	require.True(t, ok)
	assert.Equal(t, "business", ceo.Type)
}

func TestExtractSpanPositions(t *testing.T) {
	x := NewEntityExtractor()

	text := "Contact Jane Doe today"
	entities := x.Extract(text)

	jane, ok := findByText(entities, "Jane Doe")
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", text[jane.Start:jane.End])
}

func TestExtractDeduplicatesExactSpans(t *testing.T) {
	x := NewEntityExtractor()

	// "Dr. John Smith": the title pattern and the bare name pattern find
	// different spans, both survive; an identical span appears only once.
	entities := x.Extract("Dr. John Smith works here. Dr. John Smith agrees.")

	spans := make(map[[2]int]int)
	for _, entity := range entities {
		spans[[2]int{entity.Start, entity.End}]++
	}
	for span, count := range spans {
		assert.Equal(t, 1, count, "span %v extracted twice", span)
	}
}

func TestExtractIsSortedAndDeterministic(t *testing.T) {
	x := NewEntityExtractor()
	text := "John Smith met Jane Doe at Acme Corp using Python."

	first := x.Extract(text)
	require.NotEmpty(t, first)
	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, first[i-1].Start, first[i].Start)
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, first, x.Extract(text))
	}
}

func TestExtractEmptyText(t *testing.T) {
	x := NewEntityExtractor()
	assert.Empty(t, x.Extract(""))
}

func TestEntityStatistics(t *testing.T) {
	x := NewEntityExtractor()

	entities := []Entity{
		{Type: "person", Confidence: 0.8, Method: MethodPattern},
		{Type: "person", Confidence: 0.8, Method: MethodPattern},
		{Type: "technology", Confidence: 0.9, Method: MethodDictionary},
	}

	stats := x.Statistics(entities)
	assert.Equal(t, 3, stats.TotalEntities)
	assert.Equal(t, 2, stats.TypeDistribution["person"])
	assert.Equal(t, 1, stats.TypeDistribution["technology"])
	assert.Equal(t, 2, stats.ExtractionMethods[MethodPattern])
	assert.InDelta(t, (0.8+0.8+0.9)/3, stats.AverageConfidence, 1e-9)

	empty := x.Statistics(nil)
	assert.Equal(t, 0, empty.TotalEntities)
	assert.Equal(t, 0.0, empty.AverageConfidence)
}
