// Package api exposes the assistant over HTTP: the streaming chat endpoint,
// the retrieval pre-check, reference processing and feedback forwarding.
package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mvalles/asistente/llm"
	"github.com/mvalles/asistente/prompt"
	"github.com/mvalles/asistente/rag"
	"github.com/mvalles/asistente/tracing"
)

const sessionCookie = "session_id"

// Stream framing markers. The final localized answer and the run id trail the
// raw token stream; errors after streaming has begun are appended inline.
const (
	markerPostProcess = "\n[REF_POSTPROCESS]"
	markerRunID       = "\n[RUN_ID]"
	markerError       = "\n[ERROR] "
)

// Server wires the pipeline into HTTP routes.
type Server struct {
	svc        *rag.Service
	classifier *rag.Classifier
	tracer     tracing.Client
	template   prompt.Template
	company    string
	domain     string
	staticDir  string
	logger     *log.Logger

	mu        sync.Mutex
	decisions map[string]cachedDecision
}

// cachedDecision remembers one classification per session so /chat_stream can
// reuse the /check_rag result for the same literal message.
type cachedDecision struct {
	message  string
	retrieve bool
}

type Options struct {
	Company   string
	Domain    string
	StaticDir string
	Template  prompt.Template
}

func NewServer(svc *rag.Service, classifier *rag.Classifier, tracer tracing.Client, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if tracer == nil {
		tracer = tracing.NewNoop()
	}

	return &Server{
		svc:        svc,
		classifier: classifier,
		tracer:     tracer,
		template:   opts.Template,
		company:    opts.Company,
		domain:     opts.Domain,
		staticDir:  opts.StaticDir,
		logger:     logger,
		decisions:  make(map[string]cachedDecision),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/", s.handleHome)
	router.POST("/check_rag", s.handleCheckRAG)
	router.POST("/chat_stream", s.handleChatStream)
	router.POST("/process_references", s.handleProcessReferences)
	router.POST("/feedback", s.handleFeedback)
	router.POST("/thumb_feedback", s.handleThumbFeedback)

	if s.staticDir != "" {
		router.Static("/static", s.staticDir)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleHome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"company": s.company, "domain": s.domain})
}

type checkRAGRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleCheckRAG(c *gin.Context) {
	var req checkRAGRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body: " + err.Error()})
		return
	}

	sessionID := s.sessionID(c)
	retrieve := s.classifier.ShouldRetrieve(c.Request.Context(), req.Message)

	s.mu.Lock()
	s.decisions[sessionID] = cachedDecision{message: req.Message, retrieve: retrieve}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"is_rag": retrieve})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Error: No message provided"})
		return
	}

	sessionID := s.sessionID(c)

	request := rag.Request{
		Query:          req.Message,
		SystemTemplate: s.template,
		Company:        s.company,
		Domain:         s.domain,
		SessionID:      sessionID,
		RunID:          uuid.NewString(),
		Decision:       s.cachedDecision(sessionID, req.Message),
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)

	result, err := s.svc.AnswerStream(c.Request.Context(), request, func(chunk llm.Chunk) error {
		if chunk.Kind != llm.ChunkText {
			return nil
		}
		if _, werr := c.Writer.WriteString(chunk.Text); werr != nil {
			return werr
		}
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		s.logger.Printf("chat stream failed: %v", err)
		_, _ = c.Writer.WriteString(markerError + err.Error())
		c.Writer.Flush()
		return
	}

	_, _ = c.Writer.WriteString(markerPostProcess + result.Final)
	c.Writer.Flush()

	// Feedback bookkeeping must flush even when the client has gone away, so
	// it gets its own deadline instead of the request context.
	fbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.tracer.CreateFeedback(fbCtx, tracing.Feedback{
		RunID:   result.RunID,
		Key:     "Total-RAG-score",
		Score:   result.TotalScore,
		Comment: "Puntuacion del RAG obtenido con la consulta (stream).",
	}); err != nil {
		s.logger.Printf("send retrieval score feedback: %v", err)
	}

	_, _ = c.Writer.WriteString(markerRunID + result.RunID)
	c.Writer.Flush()
}

type referencesRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleProcessReferences(c *gin.Context) {
	var req referencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body: " + err.Error()})
		return
	}
	if req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Error: No se proporcionó texto."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"processed_text": s.svc.ProcessReferences(req.Text)})
}

type feedbackRequest struct {
	RunID    string  `json:"run_id"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

func (s *Server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body: " + err.Error()})
		return
	}
	if req.RunID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing run_id"})
		return
	}

	err := s.tracer.CreateFeedback(c.Request.Context(), tracing.Feedback{
		RunID:   req.RunID,
		Key:     "ui-feedback",
		Score:   req.Score,
		Comment: req.Feedback,
	})
	if err != nil {
		s.logger.Printf("send ui feedback: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error interno al enviar feedback."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "¡Gracias por tu evaluación!"})
}

type thumbFeedbackRequest struct {
	RunID      string `json:"run_id"`
	Evaluation string `json:"evaluation"`
	Reason     string `json:"reason"`
}

func (s *Server) handleThumbFeedback(c *gin.Context) {
	var req thumbFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	req.RunID = strings.TrimSpace(req.RunID)
	if req.RunID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No run_id provided"})
		return
	}

	evaluation := strings.ToLower(strings.TrimSpace(req.Evaluation))
	if evaluation != "up" && evaluation != "down" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "evaluation must be 'up' or 'down'"})
		return
	}

	score := 0.0
	if evaluation == "up" {
		score = 1.0
	}

	comment := "User thumb feedback"
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		comment = "User thumb feedback: " + reason
	}

	err := s.tracer.CreateFeedback(c.Request.Context(), tracing.Feedback{
		RunID:   req.RunID,
		Key:     "Thumb score",
		Score:   score,
		Comment: comment,
	})
	if err != nil {
		s.logger.Printf("send thumb feedback: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Feedback registered."})
}

// sessionID returns the caller's session cookie, minting one on first contact.
func (s *Server) sessionID(c *gin.Context) string {
	if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
		return id
	}

	id := uuid.NewString()
	c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
	return id
}

// cachedDecision returns the session's stored classification when it was made
// for the same literal message, consuming nothing on a miss.
func (s *Server) cachedDecision(sessionID, message string) *bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.decisions[sessionID]
	if !ok || cached.message != message {
		return nil
	}
	return &cached.retrieve
}
