package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"agentdocs/internal/auth"
	"agentdocs/internal/metrics"
	"agentdocs/internal/models"
	"agentdocs/internal/service/assistant"
	"agentdocs/internal/service/chat"
	"agentdocs/internal/service/document"
	"agentdocs/internal/worker"
)

// Handler wires HTTP routes to the store, chat and document services.
type Handler struct {
	store     *assistant.Service
	chat      *chat.Service
	documents *document.Service
	metrics   *metrics.Collector
	pool      *worker.Dispatcher
	resolver  auth.Resolver
	logger    *slog.Logger
}

type Deps struct {
	Store     *assistant.Service
	Chat      *chat.Service
	Documents *document.Service
	Metrics   *metrics.Collector
	Pool      *worker.Dispatcher
	Resolver  auth.Resolver
	Logger    *slog.Logger
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:     d.Store,
		chat:      d.Chat,
		documents: d.Documents,
		metrics:   d.Metrics,
		pool:      d.Pool,
		resolver:  d.Resolver,
		logger:    logger.With("component", "api"),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)

	api := router.Group("/api")
	api.GET("/agents", h.listAgents)
	api.GET("/agents/:slug", h.getAgent)
	api.GET("/stats", h.stats)
	api.GET("/documents/download/:filename", h.downloadDocument)

	authed := api.Group("")
	authed.Use(auth.Middleware(h.resolver))
	authed.POST("/conversations", h.createConversation)
	authed.GET("/conversations", h.listConversations)
	authed.GET("/conversations/:id", h.getConversation)
	authed.DELETE("/conversations/:id", h.deleteConversation)
	authed.POST("/conversations/:id/messages", h.sendMessage)
	authed.POST("/conversations/:id/documents/generate", h.generateDocument)
	authed.GET("/conversations/:id/documents", h.listDocuments)
	authed.DELETE("/documents/:id", h.deleteDocument)
}

func (h *Handler) actor(c *gin.Context) auth.AuthContext {
	actor, _ := auth.FromContext(c)
	return actor
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339Nano)})
}

func (h *Handler) stats(c *gin.Context) {
	out := gin.H{"metrics": h.metrics.Snapshot()}
	if h.pool != nil {
		out["renderPool"] = h.pool.Stats()
	}
	respond(c, http.StatusOK, out)
}

func (h *Handler) listAgents(c *gin.Context) {
	agents, err := h.store.ListAgents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, agents)
}

func (h *Handler) getAgent(c *gin.Context) {
	agent, err := h.store.GetAgentBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, agent)
}

func (h *Handler) createConversation(c *gin.Context) {
	var req struct {
		AgentID string `json:"agentId"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	conv, err := h.store.CreateConversation(ctx, h.actor(c).UserID, req.AgentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	agent, err := h.store.GetAgent(ctx, conv.AgentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, models.ConversationSummary{Conversation: *conv, Agent: agent.Summary()})
}

func (h *Handler) listConversations(c *gin.Context) {
	convs, err := h.store.ListConversations(c.Request.Context(), h.actor(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, convs)
}

func (h *Handler) getConversation(c *gin.Context) {
	detail, err := h.store.GetConversationDetail(c.Request.Context(), h.actor(c).UserID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, detail)
}

func (h *Handler) deleteConversation(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	docs, err := h.store.DeleteConversation(ctx, h.actor(c).UserID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.documents.Discard(ctx, id, docs)
	respondMessage(c, "conversation deleted")
}

func (h *Handler) generateDocument(c *gin.Context) {
	var req document.GenerateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	doc, err := h.documents.Generate(c.Request.Context(), h.actor(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, doc)
}

func (h *Handler) listDocuments(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, docs)
}

func (h *Handler) deleteDocument(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), h.actor(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	respondMessage(c, "document deleted")
}

func (h *Handler) downloadDocument(c *gin.Context) {
	file, err := h.documents.Open(c.Request.Context(), c.Param("filename"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer file.Close()
	c.DataFromReader(http.StatusOK, file.Size, file.ContentType, file, map[string]string{
		"Content-Disposition": `attachment; filename="` + file.Name + `"`,
	})
}
