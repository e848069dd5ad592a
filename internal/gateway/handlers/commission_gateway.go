package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"regionmart/internal/commission"
)

// CommissionHTTPHandler is the admin surface over the commission engine.
type CommissionHTTPHandler struct {
	engine   *commission.Engine
	configs  *commission.ConfigStore
	ledger   *commission.Ledger
	stats    *commission.StatsAggregator
	queue    *commission.FailureQueue
	resolver *commission.Resolver
}

func NewCommissionHTTPHandler(
	engine *commission.Engine,
	configs *commission.ConfigStore,
	ledger *commission.Ledger,
	stats *commission.StatsAggregator,
	queue *commission.FailureQueue,
	resolver *commission.Resolver,
) *CommissionHTTPHandler {
	return &CommissionHTTPHandler{
		engine:   engine,
		configs:  configs,
		ledger:   ledger,
		stats:    stats,
		queue:    queue,
		resolver: resolver,
	}
}

// --- Request & Query Structs for Binding ---

type CompleteTransactionRequest struct {
	TransactionID string     `json:"transaction_id" binding:"required"`
	UserID        int64      `json:"user_id" binding:"required"`
	AgentID       *int64     `json:"agent_id"`
	ServiceType   string     `json:"service_type" binding:"required"`
	ServiceID     string     `json:"service_id" binding:"required"`
	Provider      *string    `json:"provider"`
	Amount        string     `json:"amount" binding:"required"`
	CompletedAt   *time.Time `json:"completed_at"`
}

type MarkPaidRequest struct {
	CommissionIDs []int64 `json:"commission_ids" binding:"required"`
}

type ResolveFailureRequest struct {
	Notes string `json:"notes"`
}

type ListCommissionsQuery struct {
	UserID      *int64  `form:"user_id"`
	ServiceType *string `form:"service_type"`
	Limit       int     `form:"limit,default=50"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

// handleServiceError maps the commission error taxonomy onto HTTP statuses.
// Deferred runs report 422: the originating transaction itself succeeded,
// only the disbursement is parked in the operator queue.
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, commission.ErrAlreadyRecorded):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, commission.ErrConfigMissing),
		errors.Is(err, commission.ErrHierarchyMalformed),
		errors.Is(err, commission.ErrInvalidAmount):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()+" (queued for operator)"))
	case errors.Is(err, commission.ErrPartialFailure):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()+" (rolled back, queued for retry)"))
	case errors.Is(err, commission.ErrInvalidConfig):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, errorResponse("Record not found"))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("Service error: "+err.Error()))
	}
	c.Abort()
}

// --- Transaction Ingest ---

func (h *CommissionHTTPHandler) CompleteTransaction(c *gin.Context) {
	var req CompleteTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	txn := commission.CompletedTransaction{
		ID:          req.TransactionID,
		UserID:      req.UserID,
		AgentID:     req.AgentID,
		ServiceType: req.ServiceType,
		ServiceID:   req.ServiceID,
		Provider:    req.Provider,
		Amount:      req.Amount,
	}
	if req.CompletedAt != nil {
		txn.CompletedAt = *req.CompletedAt
	}

	result, err := h.engine.ProcessTransaction(c.Request.Context(), txn)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Commissions disbursed", result))
}

// --- Commission Config Handlers ---

func (h *CommissionHTTPHandler) CreateConfig(c *gin.Context) {
	var in commission.ConfigInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	cfg, err := h.configs.Create(c.Request.Context(), &in)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Commission config created", cfg))
}

func (h *CommissionHTTPHandler) UpdateConfig(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid config ID"))
		return
	}

	var in commission.ConfigInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	cfg, err := h.configs.Update(c.Request.Context(), id, &in)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Commission config updated", cfg))
}

func (h *CommissionHTTPHandler) DeactivateConfig(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid config ID"))
		return
	}

	if err := h.configs.Deactivate(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Commission config deactivated", nil))
}

func (h *CommissionHTTPHandler) GetConfig(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid config ID"))
		return
	}

	cfg, err := h.configs.Get(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Commission config retrieved", cfg))
}

func (h *CommissionHTTPHandler) ListConfigs(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"
	serviceType := c.Query("service_type")

	configs, err := h.configs.List(c.Request.Context(), serviceType, includeInactive)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Commission configs retrieved", configs))
}

// ResolveConfig previews which config a transaction would select, for admin
// troubleshooting of provider specificity and peak-rate windows.
func (h *CommissionHTTPHandler) ResolveConfig(c *gin.Context) {
	serviceType := c.Query("service_type")
	if serviceType == "" {
		c.JSON(http.StatusBadRequest, errorResponse("Query parameter 'service_type' is required"))
		return
	}

	var provider *string
	if p := c.Query("provider"); p != "" {
		provider = &p
	}

	at := time.Now()
	if d := c.Query("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Query parameter 'date' must be YYYY-MM-DD"))
			return
		}
		at = parsed
	}

	cfg, err := h.configs.Resolve(c.Request.Context(), serviceType, provider, at)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Commission config resolved", cfg))
}

// --- Ledger Handlers ---

func (h *CommissionHTTPHandler) ListPendingCommissions(c *gin.Context) {
	var query ListCommissionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid query parameters: "+err.Error()))
		return
	}

	entries, err := h.ledger.ListPending(c.Request.Context(), commission.PendingFilter{
		UserID:      query.UserID,
		ServiceType: query.ServiceType,
		Limit:       query.Limit,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Pending commissions retrieved", entries))
}

func (h *CommissionHTTPHandler) ListCommissionsByTransaction(c *gin.Context) {
	transactionID := c.Param("id")
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, errorResponse("Transaction ID is required"))
		return
	}

	entries, err := h.ledger.ListByTransaction(c.Request.Context(), transactionID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Commissions retrieved", entries))
}

func (h *CommissionHTTPHandler) ListCommissionsByUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid user ID"))
		return
	}

	entries, err := h.ledger.ListByUser(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Commissions retrieved", entries))
}

func (h *CommissionHTTPHandler) MarkPaid(c *gin.Context) {
	var req MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	updated, err := h.ledger.MarkPaid(c.Request.Context(), req.CommissionIDs)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	// Paid amounts moved between status buckets, so cached stats are stale.
	if entries, err := h.ledger.ListByIDs(c.Request.Context(), req.CommissionIDs); err == nil {
		userIDs := make([]int64, 0, len(entries))
		for _, entry := range entries {
			userIDs = append(userIDs, entry.UserID)
		}
		h.stats.InvalidateUsers(c.Request.Context(), userIDs...)
	}

	c.JSON(http.StatusOK, successResponse("Commissions marked paid", gin.H{
		"requested": len(req.CommissionIDs),
		"updated":   updated,
	}))
}

// --- Stats & Hierarchy Handlers ---

func (h *CommissionHTTPHandler) GetUserStats(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid user ID"))
		return
	}

	stats, err := h.stats.StatsFor(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Stats retrieved", stats))
}

func (h *CommissionHTTPHandler) GetUserHierarchy(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid user ID"))
		return
	}

	participants, err := h.resolver.ResolveParticipants(c.Request.Context(), userID, 0)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Hierarchy resolved", participants))
}

// --- Operator Queue Handlers ---

func (h *CommissionHTTPHandler) ListFailures(c *gin.Context) {
	includeResolved := c.Query("include_resolved") == "true"

	failures, err := h.queue.List(c.Request.Context(), includeResolved)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Commission failures retrieved", failures))
}

func (h *CommissionHTTPHandler) RetryFailure(c *gin.Context) {
	failureID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid failure ID"))
		return
	}

	result, err := h.engine.Retry(c.Request.Context(), failureID, c.GetInt64("user_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Commission run retried", result))
}

func (h *CommissionHTTPHandler) ResolveFailure(c *gin.Context) {
	failureID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid failure ID"))
		return
	}

	var req ResolveFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	if err := h.queue.Resolve(c.Request.Context(), failureID, c.GetInt64("user_id"), req.Notes); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Commission failure resolved", nil))
}
