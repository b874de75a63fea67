package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pbaille/notemarket/internal/classify"
	"github.com/pbaille/notemarket/internal/domain"
	"github.com/pbaille/notemarket/internal/fetcher"
	"github.com/pbaille/notemarket/internal/moderation"
)

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id "+strconv.Quote(c.Param("id")))
		return 0, false
	}
	return id, true
}

// ClassifyRequest is the body of POST /classify
type ClassifyRequest struct {
	Score  *float64 `json:"score"`
	Scheme string   `json:"scheme"`
}

func (s *Server) classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Score == nil {
		badRequest(c, "score is required")
		return
	}
	scheme, err := classify.ParseScheme(req.Scheme)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	tier, err := classify.Classify(*req.Score, scheme)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"score": *req.Score, "scheme": scheme, "result": tier}
	if scheme == classify.SchemeOriginality {
		resp["originality_score"] = classify.OriginalityScore(*req.Score)
	}
	c.JSON(http.StatusOK, resp)
}

// CreateCreatorRequest is the body of POST /creators
type CreateCreatorRequest struct {
	Username string `json:"username"`
	IsPublic *bool  `json:"is_public"`
}

func (s *Server) createCreator(c *gin.Context) {
	var req CreateCreatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		badRequest(c, "username is required")
		return
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	creator, err := s.deps.Catalog.CreateCreator(c.Request.Context(), username, isPublic)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, creator)
}

// PublishNoteRequest is the body of POST /notes
type PublishNoteRequest struct {
	CreatorID  int64  `json:"creator_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	PriceCents int    `json:"price_cents"`
}

// PublishNoteResponse is the response for a published note
type PublishNoteResponse struct {
	Note      domain.Note          `json:"note"`
	Clones    []domain.CloneRecord `json:"clones"`
	Scanned   bool                 `json:"scanned"`
	ScanError string               `json:"scan_error,omitempty"`
}

func (s *Server) publishNote(c *gin.Context) {
	var req PublishNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	body := req.Body
	if fetcher.LooksLikeHTML(body) {
		body = fetcher.ExtractText(body)
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(body) == "" {
		badRequest(c, "title and body are required")
		return
	}
	if req.PriceCents < 0 {
		badRequest(c, "price_cents must not be negative")
		return
	}

	ctx := c.Request.Context()
	if _, err := s.deps.Catalog.GetCreator(ctx, req.CreatorID); err != nil {
		writeError(c, err)
		return
	}
	note, err := s.deps.Catalog.AddNote(ctx, req.CreatorID, strings.TrimSpace(req.Title), body, req.PriceCents)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := PublishNoteResponse{Note: note, Clones: []domain.CloneRecord{}}
	if s.deps.Detector != nil {
		clones, err := s.deps.Detector.ScanNote(ctx, note.ID)
		resp.Scanned = err == nil
		if err != nil {
			// the note stays published; the background sweep retries it
			slog.Warn("scan after publish failed", "note_id", note.ID, "error", err)
			resp.ScanError = err.Error()
		}
		if clones != nil {
			resp.Clones = clones
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// CheckDraftRequest is the body of POST /drafts/check
type CheckDraftRequest struct {
	Text string `json:"text"`
}

func (s *Server) checkDraft(c *gin.Context) {
	if s.deps.Detector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "similarity detection is not configured"})
		return
	}
	var req CheckDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		badRequest(c, "text is required")
		return
	}
	text := req.Text
	if fetcher.LooksLikeHTML(text) {
		text = fetcher.ExtractText(text)
	}

	check, err := s.deps.Detector.CheckDraft(c.Request.Context(), text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

func (s *Server) noteTransparency(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	result, err := s.deps.Transparency.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) clearTransparencyCache(c *gin.Context) {
	if err := s.deps.Transparency.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActionBody is the body of POST /clones/:id/actions
type ActionBody struct {
	CreatorID      int64  `json:"creator_id"`
	Action         string `json:"action"`
	Message        string `json:"message"`
	ResaleDecision *bool  `json:"resale_decision"`
}

func (s *Server) cloneAction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body ActionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := s.deps.Workflow.HandleAction(c.Request.Context(), moderation.ActionRequest{
		CreatorID:      body.CreatorID,
		CloneID:        id,
		Action:         moderation.ActionType(body.Action),
		Message:        body.Message,
		ResaleDecision: body.ResaleDecision,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// BulkActionBody is the body of POST /clones/bulk-actions
type BulkActionBody struct {
	CreatorID int64   `json:"creator_id"`
	CloneIDs  []int64 `json:"clone_ids"`
	Action    string  `json:"action"`
	Message   string  `json:"message"`
}

func (s *Server) bulkActions(c *gin.Context) {
	var body BulkActionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if _, err := moderation.ParseActionType(body.Action); err != nil {
		badRequest(c, err.Error())
		return
	}

	result := s.deps.Workflow.HandleBulkActions(c.Request.Context(), moderation.BulkRequest{
		CreatorID: body.CreatorID,
		CloneIDs:  body.CloneIDs,
		Action:    moderation.ActionType(body.Action),
		Message:   body.Message,
	})
	c.JSON(http.StatusOK, result)
}

// MessageBody is the body of POST /clones/:id/messages
type MessageBody struct {
	CreatorID int64  `json:"creator_id"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

func (s *Server) messageCloner(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body MessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := s.deps.Workflow.SendMessageToCloner(c.Request.Context(), body.CreatorID, id, body.Subject, body.Body); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) cloneHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entries, err := s.deps.Workflow.GetActionHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clone_id": id, "history": entries})
}

func (s *Server) creatorDashboard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.deps.Catalog.GetCreator(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	report, err := s.deps.Dashboard.Report(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "invalid "+name+" "+strconv.Quote(raw))
		return 0, false
	}
	return n, true
}

func (s *Server) listNotes(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultListLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	notes, err := s.deps.Catalog.ListNotes(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes, "limit": limit, "offset": offset})
}

func (s *Server) searchNotes(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		badRequest(c, "q is required")
		return
	}
	notes, err := s.deps.Catalog.SearchNotes(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "notes": notes})
}

// NoteDetail is a note with its similarity indexing state
type NoteDetail struct {
	Note    domain.Note `json:"note"`
	Indexed bool        `json:"indexed"`
	Scanned bool        `json:"scanned"`
}

func (s *Server) getNote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	note, err := s.deps.Catalog.GetNote(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	indexed, err := s.deps.Catalog.HasEmbedding(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	scanned, err := s.deps.Catalog.IsScanned(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NoteDetail{Note: note, Indexed: indexed, Scanned: scanned})
}
