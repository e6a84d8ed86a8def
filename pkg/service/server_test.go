package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/kgraph/pkg/graph"
	"github.com/theapemachine/kgraph/pkg/reasoning"
)

func counterGen() graph.IDGen {
	n := 0
	return func(prefix string) string {
		n++
		return fmt.Sprintf("%s_%d", prefix, n)
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := graph.NewStore(graph.Config{IDGen: counterGen()})
	require.NoError(t, err)

	return NewServer(store, reasoning.NewEngine(store))
}

func doJSON(t *testing.T, srv *Server, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.App().Test(req)
	require.NoError(t, err)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	return resp, payload
}

func createEntity(t *testing.T, srv *Server, name, entityType string) string {
	t.Helper()

	resp, body := doJSON(t, srv, http.MethodPost, "/entities", graph.EntityPayload{
		Name: name,
		Type: entityType,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.ID)
	return out.ID
}

func TestEntityLifecycle(t *testing.T) {
	srv := newTestServer(t)

	id := createEntity(t, srv, "Alice", "person")

	resp, body := doJSON(t, srv, http.MethodGet, "/entities/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entity graph.Entity
	require.NoError(t, json.Unmarshal(body, &entity))
	assert.Equal(t, "Alice", entity.Name)
	assert.Equal(t, "person", entity.Type)

	resp, _ = doJSON(t, srv, http.MethodDelete, "/entities/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodGet, "/entities/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddRelationValidatesEndpoints(t *testing.T) {
	srv := newTestServer(t)

	alice := createEntity(t, srv, "Alice", "person")

	resp, _ := doJSON(t, srv, http.MethodPost, "/relations", graph.RelationPayload{
		SourceID: alice,
		TargetID: "entity_missing",
		Type:     "knows",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	bob := createEntity(t, srv, "Bob", "person")
	resp, body := doJSON(t, srv, http.MethodPost, "/relations", graph.RelationPayload{
		SourceID: alice,
		TargetID: bob,
		Type:     "knows",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &out))

	resp, _ = doJSON(t, srv, http.MethodDelete, "/relations/"+out.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestQueryEndpoint(t *testing.T) {
	srv := newTestServer(t)

	createEntity(t, srv, "Python", "technology")
	createEntity(t, srv, "Fortran", "technology")

	resp, body := doJSON(t, srv, http.MethodGet, "/query?q=python&limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Fortran never matches the text but rides in on its importance score.
	var results []graph.QueryResult
	require.NoError(t, json.Unmarshal(body, &results))
	require.Len(t, results, 2)
	assert.Equal(t, "Python", results[0].Entity.Name)
	assert.Equal(t, "Fortran", results[1].Entity.Name)
	assert.Greater(t, results[0].Relevance, results[1].Relevance)
}

func TestFindRelatedEndpoint(t *testing.T) {
	srv := newTestServer(t)

	alice := createEntity(t, srv, "Alice", "person")
	acme := createEntity(t, srv, "Acme", "organization")

	resp, _ := doJSON(t, srv, http.MethodPost, "/relations", graph.RelationPayload{
		SourceID: alice,
		TargetID: acme,
		Type:     "works_for",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, srv, http.MethodGet,
		"/entities/"+alice+"/related?types=works_for&max_depth=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var related []graph.RelatedEntity
	require.NoError(t, json.Unmarshal(body, &related))
	require.Len(t, related, 1)
	assert.Equal(t, acme, related[0].Entity.ID)
	assert.Equal(t, 0.5, related[0].Strength)

	resp, _ = doJSON(t, srv, http.MethodGet, "/entities/entity_missing/related", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFindEntitiesRequiresFilter(t *testing.T) {
	srv := newTestServer(t)

	createEntity(t, srv, "Alice", "person")

	resp, body := doJSON(t, srv, http.MethodGet, "/entities?type=person", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entities []graph.Entity
	require.NoError(t, json.Unmarshal(body, &entities))
	assert.Len(t, entities, 1)

	resp, _ = doJSON(t, srv, http.MethodGet, "/entities", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRulesAndInference(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/rules", reasoning.Rule{
		Name:       "employment implies income",
		Premises:   []string{"works for"},
		Conclusion: "the subject earns a salary",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rule reasoning.Rule
	require.NoError(t, json.Unmarshal(body, &rule))
	assert.NotEmpty(t, rule.ID)

	resp, body = doJSON(t, srv, http.MethodGet, "/infer?q=alice+works+for+acme", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var inferences []reasoning.Inference
	require.NoError(t, json.Unmarshal(body, &inferences))
	require.Len(t, inferences, 1)
	assert.Equal(t, reasoning.TypeRuleBased, inferences[0].ReasoningType)

	resp, body = doJSON(t, srv, http.MethodGet,
		"/infer/"+inferences[0].ID+"/explanation", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var explanation reasoning.Explanation
	require.NoError(t, json.Unmarshal(body, &explanation))
	assert.Contains(t, explanation.Explanation, "employment implies income")

	resp, _ = doJSON(t, srv, http.MethodGet, "/infer/inference_unknown/explanation", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExtractEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/extract", map[string]string{
		"text": "John Smith works for Acme Data Technologies.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Entities  []json.RawMessage `json:"entities"`
		Relations []json.RawMessage `json:"relations"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.NotEmpty(t, out.Entities)
	assert.NotEmpty(t, out.Relations)
}

func TestCleanupAndStats(t *testing.T) {
	srv := newTestServer(t)

	low := 0.05
	resp, _ := doJSON(t, srv, http.MethodPost, "/entities", graph.EntityPayload{
		Name:       "Stale",
		Importance: &low,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, srv, http.MethodPost, "/cleanup", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cleanup struct {
		EntitiesRemoved  int `json:"entities_removed"`
		RelationsRemoved int `json:"relations_removed"`
	}
	require.NoError(t, json.Unmarshal(body, &cleanup))
	assert.Equal(t, 1, cleanup.EntitiesRemoved)

	resp, body = doJSON(t, srv, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		Graph graph.Stats `json:"graph"`
	}
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 0, stats.Graph.TotalEntities)
}

func TestExportImportEndpoints(t *testing.T) {
	srv := newTestServer(t)

	createEntity(t, srv, "Alice", "person")

	resp, body := doJSON(t, srv, http.MethodGet, "/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc graph.ExportDoc
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Len(t, doc.Entities, 1)

	other := newTestServer(t)
	resp, body = doJSON(t, other, http.MethodPost, "/import", doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats graph.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.TotalEntities)
}
