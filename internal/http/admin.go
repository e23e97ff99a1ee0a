package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kitabu-club/kitabu/internal/database/audit"
	requeststore "github.com/kitabu-club/kitabu/internal/database/requests"
	"github.com/kitabu-club/kitabu/internal/entities"
	"github.com/kitabu-club/kitabu/internal/fulfillment"
	"github.com/kitabu-club/kitabu/internal/tasks"
)

// AdminController exposes moderation endpoints: resolving requests,
// sweeping requests fulfilled out of band, and triggering cover
// resolution. All routes require the admin role.
type AdminController struct {
	fulfillment *fulfillment.Service
	audit       *audit.Repository
	taskClient  *tasks.Client
}

func NewAdminController(service *fulfillment.Service, auditRepo *audit.Repository, taskClient *tasks.Client) *AdminController {
	return &AdminController{
		fulfillment: service,
		audit:       auditRepo,
		taskClient:  taskClient,
	}
}

// ListRequests returns all requests, optionally filtered by status.
func (controller *AdminController) ListRequests(c *gin.Context) {
	status := entities.RequestStatus(c.Query("status"))

	var (
		items []entities.BookRequest
		err   error
	)
	if status != "" {
		if !status.Valid() {
			respondBadRequest(c, "unknown status")
			return
		}
		items, err = controller.fulfillment.RequestsByStatus(c.Request.Context(), status)
	} else {
		items, err = controller.fulfillment.CommunityRequests(c.Request.Context())
	}
	if err != nil {
		respondInternalError(c, err, "list requests")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"requests": items, "count": len(items)})
}

// FulfillWithExisting links a request to a book already in the catalog.
func (controller *AdminController) FulfillWithExisting(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	bookID, err := strconv.ParseUint(c.PostForm("book_id"), 10, 32)
	if err != nil || bookID == 0 {
		respondBadRequest(c, "book_id is required")
		return
	}

	request, err := controller.fulfillment.FulfillWithExisting(c.Request.Context(), id, uint(bookID))
	if err != nil {
		controller.respondTransitionError(c, err, "fulfil request")
		return
	}

	logAuditEvent(c, controller.audit, entities.AuditEventFulfillment, "request_fulfill",
		fmt.Sprintf("Fulfilled request %d with book %d", id, bookID), "request", id)
	c.IndentedJSON(http.StatusOK, request)
}

// Reject marks a request as rejected with an optional note for the
// requester.
func (controller *AdminController) Reject(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.fulfillment.Reject(c.Request.Context(), id, c.PostForm("note")); err != nil {
		controller.respondTransitionError(c, err, "reject request")
		return
	}

	logAuditEvent(c, controller.audit, entities.AuditEventFulfillment, "request_reject",
		fmt.Sprintf("Rejected request %d", id), "request", id)
	respondSuccess(c, "request rejected")
}

// Contact flags a request as needing clarification from the requester,
// typically followed by a WhatsApp message.
func (controller *AdminController) Contact(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.fulfillment.RequireContact(c.Request.Context(), id, c.PostForm("note")); err != nil {
		controller.respondTransitionError(c, err, "flag request for contact")
		return
	}

	logAuditEvent(c, controller.audit, entities.AuditEventFulfillment, "request_contact",
		fmt.Sprintf("Flagged request %d for requester contact", id), "request", id)
	respondSuccess(c, "request flagged for contact")
}

// BulkFulfill marks the given requests fulfilled in one sweep. Used when
// books were delivered over WhatsApp without going through the catalog.
// Responds with the number of requests actually updated; requests already
// resolved are skipped, not errors.
func (controller *AdminController) BulkFulfill(c *gin.Context) {
	var ids []uint
	for _, raw := range c.PostFormArray("ids") {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			respondBadRequest(c, "ids must be positive integers")
			return
		}
		ids = append(ids, uint(id))
	}
	if len(ids) == 0 {
		respondBadRequest(c, "at least one request id is required")
		return
	}

	updated, err := controller.fulfillment.BulkMarkFulfilled(c.Request.Context(), ids)
	if err != nil {
		respondInternalError(c, err, "bulk fulfil requests")
		return
	}

	logAuditEvent(c, controller.audit, entities.AuditEventBulkAction, "bulk_fulfill",
		fmt.Sprintf("Marked %d of %d requests fulfilled", updated, len(ids)), "request", 0)
	c.IndentedJSON(http.StatusOK, gin.H{
		"updated":   updated,
		"requested": len(ids),
	})
}

// ResolveCovers enqueues a catalog-wide cover resolution sweep.
func (controller *AdminController) ResolveCovers(c *gin.Context) {
	if controller.taskClient == nil {
		respondError(c, http.StatusServiceUnavailable, "background tasks are not enabled")
		return
	}

	if _, err := controller.taskClient.Add(tasks.ResolveMissingCoversTask{}).Ctx(c.Request.Context()).Save(); err != nil {
		respondInternalError(c, err, "enqueue cover sweep")
		return
	}
	respondAccepted(c, "cover resolution sweep enqueued", nil)
}

// AuditEvents returns paginated audit events, most recent first.
func (controller *AdminController) AuditEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := controller.audit.GetEvents(0, limit, offset)
	if err != nil {
		respondInternalError(c, err, "list audit events")
		return
	}
	c.IndentedJSON(http.StatusOK, PaginatedResponse{
		Data:    events,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(events)) < total,
	})
}

func (controller *AdminController) respondTransitionError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondNotFound(c, "request")
	case errors.Is(err, requeststore.ErrAlreadyResolved),
		errors.Is(err, entities.ErrInvalidTransition):
		respondError(c, http.StatusConflict, err.Error())
	default:
		respondInternalError(c, err, context)
	}
}
