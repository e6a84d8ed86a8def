package service

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	kgerrors "github.com/theapemachine/kgraph/pkg/errors"
	"github.com/theapemachine/kgraph/pkg/extract"
	"github.com/theapemachine/kgraph/pkg/graph"
	"github.com/theapemachine/kgraph/pkg/reasoning"
)

/*
Server exposes the knowledge graph engine over HTTP. It owns no state of
its own: every handler delegates to the store, the reasoning engine or
the extractors.
*/
type Server struct {
	app       *fiber.App
	store     *graph.Store
	engine    *reasoning.Engine
	entities  *extract.EntityExtractor
	relations *extract.RelationExtractor
}

// NewServer wires the engine components behind a fiber app.
func NewServer(store *graph.Store, engine *reasoning.Engine) *Server {
	srv := &Server{
		app: fiber.New(fiber.Config{
			AppName:      "Knowledge Graph",
			ServerHeader: "KGraph-Server",
		}),
		store:     store,
		engine:    engine,
		entities:  extract.NewEntityExtractor(),
		relations: extract.NewRelationExtractor(),
	}
	srv.routes()
	return srv
}

// App exposes the fiber app for in-process testing.
func (srv *Server) App() *fiber.App {
	return srv.app
}

// Run blocks serving HTTP on the given address.
func (srv *Server) Run(addr string) error {
	return srv.app.Listen(addr)
}

func (srv *Server) routes() {
	srv.app.Get("/", func(ctx fiber.Ctx) error {
		return ctx.SendString("OK")
	})

	srv.app.Post("/entities", srv.handleAddEntity)
	srv.app.Get("/entities/:id", srv.handleGetEntity)
	srv.app.Delete("/entities/:id", srv.handleRemoveEntity)
	srv.app.Get("/entities/:id/related", srv.handleFindRelated)
	srv.app.Get("/entities", srv.handleFindEntities)

	srv.app.Post("/relations", srv.handleAddRelation)
	srv.app.Get("/relations/:id", srv.handleGetRelation)
	srv.app.Delete("/relations/:id", srv.handleRemoveRelation)

	srv.app.Get("/query", srv.handleQuery)

	srv.app.Post("/rules", srv.handleAddRule)
	srv.app.Get("/rules", srv.handleListRules)
	srv.app.Get("/infer", srv.handleInfer)
	srv.app.Get("/infer/:id/explanation", srv.handleExplain)

	srv.app.Post("/extract", srv.handleExtract)

	srv.app.Post("/cleanup", srv.handleCleanup)
	srv.app.Get("/stats", srv.handleStats)
	srv.app.Get("/export", srv.handleExport)
	srv.app.Post("/import", srv.handleImport)
}

func (srv *Server) handleAddEntity(ctx fiber.Ctx) error {
	var payload graph.EntityPayload
	if err := ctx.Bind().Body(&payload); err != nil {
		return badRequest(ctx, kgerrors.ErrInvalidPayload.WithMessagef("invalid entity payload: %v", err))
	}

	id, err := srv.store.InsertEntity(payload)
	if err != nil {
		return badRequest(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (srv *Server) handleGetEntity(ctx fiber.Ctx) error {
	entity, ok := srv.store.GetEntity(ctx.Params("id"))
	if !ok {
		return notFound(ctx)
	}
	return ctx.Status(fiber.StatusOK).JSON(entity)
}

func (srv *Server) handleRemoveEntity(ctx fiber.Ctx) error {
	if !srv.store.RemoveEntity(ctx.Params("id")) {
		return notFound(ctx)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (srv *Server) handleFindRelated(ctx fiber.Ctx) error {
	id := ctx.Params("id")
	if _, ok := srv.store.GetEntity(id); !ok {
		return notFound(ctx)
	}

	var relationTypes []string
	if raw := ctx.Query("types"); raw != "" {
		relationTypes = splitCSV(raw)
	}

	related := srv.store.FindRelated(id, relationTypes, queryInt(ctx, "max_depth", 0))
	return ctx.Status(fiber.StatusOK).JSON(related)
}

// handleFindEntities serves the indexed lookups: ?type=person or
// ?attribute=city&value=Berlin.
func (srv *Server) handleFindEntities(ctx fiber.Ctx) error {
	limit := queryInt(ctx, "limit", 0)

	if entityType := ctx.Query("type"); entityType != "" {
		return ctx.Status(fiber.StatusOK).JSON(
			srv.store.FindEntitiesByType(entityType, limit),
		)
	}
	if attribute := ctx.Query("attribute"); attribute != "" {
		return ctx.Status(fiber.StatusOK).JSON(
			srv.store.FindEntitiesByAttribute(attribute, ctx.Query("value"), limit),
		)
	}

	return badRequest(ctx, kgerrors.ErrInvalidPayload.WithMessagef(
		"either type or attribute query parameter is required",
	))
}

func (srv *Server) handleAddRelation(ctx fiber.Ctx) error {
	var payload graph.RelationPayload
	if err := ctx.Bind().Body(&payload); err != nil {
		return badRequest(ctx, kgerrors.ErrInvalidPayload.WithMessagef("invalid relation payload: %v", err))
	}

	id, err := srv.store.InsertRelation(payload)
	if err != nil {
		if errors.Is(err, kgerrors.ErrInvalidReference) {
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(err)
		}
		return badRequest(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (srv *Server) handleGetRelation(ctx fiber.Ctx) error {
	relation, ok := srv.store.GetRelation(ctx.Params("id"))
	if !ok {
		return notFound(ctx)
	}
	return ctx.Status(fiber.StatusOK).JSON(relation)
}

func (srv *Server) handleRemoveRelation(ctx fiber.Ctx) error {
	if !srv.store.RemoveRelation(ctx.Params("id")) {
		return notFound(ctx)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (srv *Server) handleQuery(ctx fiber.Ctx) error {
	results := srv.store.Query(ctx.Query("q"), queryInt(ctx, "limit", 0))
	return ctx.Status(fiber.StatusOK).JSON(results)
}

func (srv *Server) handleAddRule(ctx fiber.Ctx) error {
	var rule reasoning.Rule
	if err := ctx.Bind().Body(&rule); err != nil {
		return badRequest(ctx, kgerrors.ErrInvalidPayload.WithMessagef("invalid rule payload: %v", err))
	}
	return ctx.Status(fiber.StatusCreated).JSON(srv.engine.AddRule(rule))
}

func (srv *Server) handleListRules(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(srv.engine.Rules())
}

func (srv *Server) handleInfer(ctx fiber.Ctx) error {
	inferences := srv.engine.Infer(ctx.Query("q"), queryInt(ctx, "max_depth", 0))
	return ctx.Status(fiber.StatusOK).JSON(inferences)
}

func (srv *Server) handleExplain(ctx fiber.Ctx) error {
	explanation, ok := srv.engine.Explain(ctx.Params("id"))
	if !ok {
		return notFound(ctx)
	}
	return ctx.Status(fiber.StatusOK).JSON(explanation)
}

// handleExtract runs both extractors over raw text and returns the
// candidates without inserting anything.
func (srv *Server) handleExtract(ctx fiber.Ctx) error {
	var payload struct {
		Text string `json:"text"`
	}
	if err := ctx.Bind().Body(&payload); err != nil {
		return badRequest(ctx, kgerrors.ErrInvalidPayload.WithMessagef("invalid extract payload: %v", err))
	}

	entities := srv.entities.Extract(payload.Text)
	relations := srv.relations.Extract(payload.Text, entities)

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"entities":  entities,
		"relations": relations,
	})
}

func (srv *Server) handleCleanup(ctx fiber.Ctx) error {
	entitiesRemoved, relationsRemoved := srv.store.Cleanup()
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"entities_removed":  entitiesRemoved,
		"relations_removed": relationsRemoved,
	})
}

func (srv *Server) handleStats(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"graph":     srv.store.Statistics(),
		"reasoning": srv.engine.Statistics(),
	})
}

func (srv *Server) handleExport(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(srv.store.Export())
}

func (srv *Server) handleImport(ctx fiber.Ctx) error {
	var doc graph.ExportDoc
	if err := ctx.Bind().Body(&doc); err != nil {
		return badRequest(ctx, kgerrors.ErrInvalidPayload.WithMessagef("invalid export document: %v", err))
	}

	srv.store.Import(&doc)
	return ctx.Status(fiber.StatusOK).JSON(srv.store.Statistics())
}

func badRequest(ctx fiber.Ctx, err error) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(err)
}

func notFound(ctx fiber.Ctx) error {
	return ctx.Status(fiber.StatusNotFound).JSON(kgerrors.ErrNotFound)
}

func queryInt(ctx fiber.Ctx, name string, def int) int {
	raw := ctx.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
