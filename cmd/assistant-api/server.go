package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/uov-ai/assistant/internal/application"
	"github.com/uov-ai/assistant/internal/domain"
	"github.com/uov-ai/assistant/internal/ports"
)

// server holds the HTTP handlers and their collaborators.
type server struct {
	orchestrator *application.Orchestrator
	history      ports.HistoryStore
	searcher     ports.VectorSearcher
	limiter      *ipRateLimiter
	logger       *zap.Logger
}

// chatRequest is the body of POST /chat and POST /chat/stream.
type chatRequest struct {
	Question       string  `json:"question" binding:"required"`
	SessionID      string  `json:"session_id"`
	TopK           int     `json:"top_k"`
	ScoreThreshold float64 `json:"score_threshold"`
}

// feedbackRequest is the body of POST /feedback.
type feedbackRequest struct {
	SessionID string `json:"session_id" binding:"required,uuid"`
	MessageID string `json:"message_id" binding:"required,uuid"`
	Rating    string `json:"rating" binding:"required,oneof=up down"`
	Comment   string `json:"comment"`
}

func (s *server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := router.Group("/", rateLimitMiddleware(s.limiter))
	limited.POST("/chat", s.handleChat)
	limited.POST("/chat/stream", s.handleChatStream)
	limited.POST("/feedback", s.handleFeedback)
	limited.GET("/sessions/:id/messages", s.handleSessionMessages)

	return router
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *server) handleHealth(c *gin.Context) {
	qdrantUp := s.searcher.Health(c.Request.Context())
	historyUp := s.history.Health(c.Request.Context())

	status := http.StatusOK
	overall := "ok"
	if !qdrantUp || !historyUp {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":  overall,
		"qdrant":  qdrantUp,
		"history": historyUp,
	})
}

// handleChat serves the synchronous answer endpoint.
func (s *server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	start := time.Now()

	sessionID, err := s.resolveSession(c, req.SessionID)
	if err != nil {
		return
	}

	result, err := s.orchestrator.Answer(ctx, req.Question, req.TopK, req.ScoreThreshold)
	s.logRequest(sessionID, "/chat", time.Since(start), err)
	if err != nil {
		s.writeUpstreamError(c, err)
		return
	}

	messageID := s.persistTurn(sessionID, req.Question, result.Answer, result.Citations)

	c.JSON(http.StatusOK, gin.H{
		"session_id":           sessionID.String(),
		"message_id":           messageID.String(),
		"answer":               result.Answer,
		"citations":            result.Citations,
		"chunks_retrieved":     result.ChunksRetrieved,
		"confidence":           result.Confidence,
		"avg_retrieval_score":  result.AvgRetrievalScore,
		"is_identity_question": result.IsIdentityQuestion,
	})
}

// handleChatStream serves the SSE streaming endpoint. Each event is a
// `data:` line holding a JSON envelope with a type field mirroring the
// pipeline's stream events, followed by a final done event carrying the
// message ID.
func (s *server) handleChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID, err := s.resolveSession(c, req.SessionID)
	if err != nil {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	ctx := c.Request.Context()
	start := time.Now()

	var answer string
	var citations []domain.Citation
	var streamErr error

	for event := range s.orchestrator.AnswerStream(ctx, req.Question, req.TopK, req.ScoreThreshold) {
		switch event.Type {
		case domain.StreamEventChunk:
			answer += event.Chunk
			s.writeSSE(c, gin.H{"type": "chunk", "content": event.Chunk})
		case domain.StreamEventCitations:
			citations = event.Citations
			s.writeSSE(c, gin.H{"type": "citations", "citations": event.Citations})
		case domain.StreamEventMetadata:
			s.writeSSE(c, gin.H{
				"type":                "metadata",
				"chunks_retrieved":    event.Metadata.ChunksRetrieved,
				"confidence":          event.Metadata.Confidence,
				"avg_retrieval_score": event.Metadata.AvgRetrievalScore,
			})
		case domain.StreamEventError:
			streamErr = event.Err
			s.writeSSE(c, gin.H{"type": "error", "error": userFacingError(event.Err)})
		}
	}

	s.logRequest(sessionID, "/chat/stream", time.Since(start), streamErr)

	if streamErr != nil || ctx.Err() != nil {
		return
	}

	messageID := s.persistTurn(sessionID, req.Question, answer, citations)
	s.writeSSE(c, gin.H{
		"type":       "done",
		"session_id": sessionID.String(),
		"message_id": messageID.String(),
	})
}

func (s *server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feedback := domain.Feedback{
		ID:        uuid.New(),
		SessionID: uuid.MustParse(req.SessionID),
		MessageID: uuid.MustParse(req.MessageID),
		Rating:    domain.FeedbackRating(req.Rating),
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}
	if err := s.history.SaveFeedback(c.Request.Context(), feedback); err != nil {
		s.logger.Error("save feedback failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record feedback"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback_id": feedback.ID.String()})
}

func (s *server) handleSessionMessages(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	_, found, err := s.history.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		s.logger.Error("get session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load session"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	messages, err := s.history.SessionMessages(c.Request.Context(), sessionID, 100)
	if err != nil {
		s.logger.Error("list messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID.String(),
		"messages":   messages,
	})
}

// resolveSession returns the existing session or creates a new one. On
// failure it writes the error response itself and returns a non-nil error.
func (s *server) resolveSession(c *gin.Context, raw string) (uuid.UUID, error) {
	ctx := c.Request.Context()

	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return uuid.Nil, err
		}
		if _, found, err := s.history.GetSession(ctx, id); err == nil && found {
			return id, nil
		}
		// Unknown IDs fall through to a fresh session rather than erroring;
		// the client may have outlived a purged database.
	}

	session := domain.ChatSession{ID: uuid.New(), CreatedAt: time.Now()}
	if err := s.history.CreateSession(ctx, session); err != nil {
		s.logger.Error("create session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return uuid.Nil, err
	}
	return session.ID, nil
}

// persistTurn saves the user question and assistant answer. History
// failures are logged, not surfaced; the user already has the answer.
func (s *server) persistTurn(sessionID uuid.UUID, question, answer string, citations []domain.Citation) uuid.UUID {
	// Persist detached from the request context so a client disconnect
	// after receiving the answer does not lose the turn.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	now := time.Now()

	userMsg := domain.ChatMessage{
		ID: uuid.New(), SessionID: sessionID,
		Role: domain.RoleUser, Content: question, CreatedAt: now,
	}
	if err := s.history.SaveMessage(ctx, userMsg); err != nil {
		s.logger.Warn("save user message failed", zap.Error(err))
	}

	assistantMsg := domain.ChatMessage{
		ID: uuid.New(), SessionID: sessionID,
		Role: domain.RoleAssistant, Content: answer,
		Citations: citations, CreatedAt: now.Add(time.Millisecond),
	}
	if err := s.history.SaveMessage(ctx, assistantMsg); err != nil {
		s.logger.Warn("save assistant message failed", zap.Error(err))
	}
	return assistantMsg.ID
}

func (s *server) logRequest(sessionID uuid.UUID, endpoint string, latency time.Duration, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if logErr := s.history.LogRequest(ctx, sessionID, endpoint, latency, err); logErr != nil {
		s.logger.Warn("request log failed", zap.Error(logErr))
	}
}

func (s *server) writeSSE(c *gin.Context, payload gin.H) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode SSE payload failed", zap.Error(err))
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

// writeUpstreamError maps pipeline failures to HTTP responses without
// leaking provider internals.
func (s *server) writeUpstreamError(c *gin.Context, err error) {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		s.logger.Error("upstream capability failed",
			zap.String("capability", upstream.Capability), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": userFacingError(err)})
		return
	}
	s.logger.Error("answer failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func userFacingError(err error) string {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		return fmt.Sprintf("the %s service is temporarily unavailable, please try again", upstream.Capability)
	}
	return "internal error"
}
