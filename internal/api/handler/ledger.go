package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/CyberSentinel/internal/ledger"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
	"go.uber.org/zap"
)

// LedgerHandler exposes read-only endpoints over the case audit trail.
type LedgerHandler struct {
	ledger  ledger.Ledger
	records ledger.RecordSource // nil = no /cases/:id/verify route
	logger  *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler. records is usually the
// case repository; stored records are checked against it.
func NewLedgerHandler(l ledger.Ledger, records ledger.RecordSource, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, records: records, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.VerifyChain)
		l.GET("/entries/:seq", h.GetEntry)
	}
	if h.records != nil {
		rg.GET("/cases/:id/verify", h.VerifyCase)
	}
}

// Overview handles GET /ledger, returning the trail length and tip hash.
func (h *LedgerHandler) Overview(c *gin.Context) {
	head, err := h.ledger.Head(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "ledger head", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": head.Length,
		"root":    head.Root,
	})
}

// VerifyChain handles GET /ledger/verify. A broken trail is still a 200;
// the body carries valid=false and the first bad sequence number.
func (h *LedgerHandler) VerifyChain(c *gin.Context) {
	err := h.ledger.Verify(c.Request.Context())
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"valid": true})
		return
	}

	var ce *ledger.ChainError
	if !errors.As(err, &ce) {
		writeError(c, h.logger, "ledger verify", err)
		return
	}
	h.logger.Warn("case audit trail failed verification",
		zap.Int("seq", ce.Seq),
		zap.String("reason", ce.Reason),
	)
	c.JSON(http.StatusOK, gin.H{
		"valid": false,
		"seq":   ce.Seq,
		"error": ce.Error(),
	})
}

// GetEntry handles GET /ledger/entries/:seq.
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seq < 1 {
		badRequest(c, "seq must be a positive integer")
		return
	}
	entry, err := h.ledger.Entry(c.Request.Context(), seq)
	if err != nil {
		writeError(c, h.logger, "ledger entry", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// VerifyCase handles GET /cases/:id/verify, comparing the stored record
// with the digests recorded when it was analysed and reported.
func (h *LedgerHandler) VerifyCase(c *gin.Context) {
	id := c.Param("id")
	if err := threat.ValidateCaseID(id); err != nil {
		writeError(c, h.logger, "verify case", err)
		return
	}
	v, err := ledger.VerifyCase(c.Request.Context(), h.ledger, h.records, id)
	if err != nil {
		writeError(c, h.logger, "verify case", err)
		return
	}
	if !v.Intact {
		h.logger.Warn("stored case does not match its audit trail",
			zap.String("case_id", id),
			zap.String("reason", v.Reason),
		)
	}
	c.JSON(http.StatusOK, v)
}
