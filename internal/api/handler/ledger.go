package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/chainledger/internal/chain"
	"github.com/jmerrifield20/chainledger/internal/identity"
	"github.com/jmerrifield20/chainledger/internal/ledger"
	"go.uber.org/zap"
)

// maxPageSize caps GET /ledger/records when no limit is given.
const maxPageSize = 1000

// LedgerHandler exposes HTTP endpoints for the ledger.
type LedgerHandler struct {
	ledger ledger.Ledger
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(l ledger.Ledger, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, logger: logger}
}

// SetTokenIssuer requires a bearer token with identity.ScopeAppend on
// POST /ledger/records. Without one, appends are open.
func (h *LedgerHandler) SetTokenIssuer(tokens *identity.TokenIssuer) {
	h.tokens = tokens
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/records", h.ListRecords)
		l.GET("/records/:idx", h.GetRecord)
		l.POST("/records", RequireScope(h.tokens, identity.ScopeAppend, h.logger), h.AppendRecord)
		l.GET("/verify", h.Verify)
		l.GET("/analysis", h.Analyze)
		l.GET("/search", h.Search)
	}
}

// Overview handles GET /ledger: returns the chain length and current root digest.
func (h *LedgerHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.ledger.Len(ctx)
	if err != nil {
		h.logger.Error("ledger Len", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}

	root, err := h.ledger.Root(ctx)
	if err != nil {
		h.logger.Error("ledger Root", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger root"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": count,
		"root":    root,
		"digest":  h.ledger.Digest(),
	})
}

// ListRecords handles GET /ledger/records?from=&limit=: records in index order.
func (h *LedgerHandler) ListRecords(c *gin.Context) {
	from, err := queryInt(c, "from", 0)
	if err != nil || from < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be a non-negative integer"})
		return
	}
	limit, err := queryInt(c, "limit", maxPageSize)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	records, err := h.ledger.Records(c.Request.Context(), from, limit)
	if err != nil {
		h.logger.Error("ledger Records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// GetRecord handles GET /ledger/records/:idx: returns a single record.
func (h *LedgerHandler) GetRecord(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	r, err := h.ledger.Get(c.Request.Context(), idx)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		h.logger.Error("ledger Get", zap.Int("idx", idx), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read record"})
		return
	}
	c.JSON(http.StatusOK, r)
}

type appendRequest struct {
	Payload *string `json:"payload"`
}

// AppendRecord handles POST /ledger/records: links a new record.
func (h *LedgerHandler) AppendRecord(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Payload == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"payload\": string}"})
		return
	}

	r, err := h.ledger.Append(c.Request.Context(), *req.Payload)
	if err != nil {
		h.logger.Error("ledger Append", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to append record"})
		return
	}

	h.logger.Info("record appended",
		zap.Int("idx", r.Index),
		zap.String("digest", r.Digest),
		zap.String("request_id", c.GetString(requestIDKey)),
	)
	c.JSON(http.StatusCreated, r)
}

// Verify handles GET /ledger/verify: walks the full chain and reports integrity.
func (h *LedgerHandler) Verify(c *gin.Context) {
	err := h.ledger.Verify(c.Request.Context())
	RecordVerification(err == nil)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"valid": true})
		return
	}

	h.logger.Warn("ledger integrity check failed", zap.Error(err))
	resp := gin.H{"valid": false, "error": err.Error()}
	var ie *chain.IntegrityError
	if errors.As(err, &ie) {
		resp["index"] = ie.Index
		resp["reason"] = ie.Reason()
	}
	c.JSON(http.StatusOK, resp)
}

// Analyze handles GET /ledger/analysis: record count, payload distribution
// and time between records.
func (h *LedgerHandler) Analyze(c *gin.Context) {
	rep, err := h.ledger.Analyze(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger Analyze", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to analyze ledger"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records":           rep.Count,
		"distribution":      rep.Distribution,
		"intervals":         rep.Intervals,
		"total_gap_ms":      durationMillis(rep.TotalGap),
		"average_gap_ms":    durationMillis(rep.AverageGap),
		"average_gap":       rep.AverageGap.String(),
		"clock_regressions": rep.ClockRegressions,
	})
}

// Search handles GET /ledger/search?payload=: first record with that exact payload.
func (h *LedgerHandler) Search(c *gin.Context) {
	query, ok := c.GetQuery("payload")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload query parameter is required"})
		return
	}

	r, found, err := h.ledger.Find(c.Request.Context(), query)
	if err != nil {
		h.logger.Error("ledger Find", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search ledger"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
