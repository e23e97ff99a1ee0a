package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kitabu-club/kitabu/internal/auth"
	"github.com/kitabu-club/kitabu/internal/database/audit"
	"github.com/kitabu-club/kitabu/internal/database/profiles"
	requeststore "github.com/kitabu-club/kitabu/internal/database/requests"
	"github.com/kitabu-club/kitabu/internal/entities"
	"github.com/kitabu-club/kitabu/internal/fulfillment"
)

type RequestsController struct {
	fulfillment *fulfillment.Service
	profiles    *profiles.Repository
	audit       *audit.Repository
}

func NewRequestsController(service *fulfillment.Service, profileRepo *profiles.Repository, auditRepo *audit.Repository) *RequestsController {
	return &RequestsController{
		fulfillment: service,
		profiles:    profileRepo,
		audit:       auditRepo,
	}
}

// currentProfile resolves the requester profile for the logged-in user,
// provisioning one on the fly when the form carries WhatsApp contact
// details. Accounts normally get a profile at signup; the fallback covers
// accounts created before that was the case.
func (controller *RequestsController) currentProfile(c *gin.Context) (*entities.Profile, bool) {
	userID := auth.GetUserID(c)
	if userID == 0 {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return nil, false
	}

	profile, err := controller.profiles.GetByUserID(userID)
	if err == nil {
		return profile, true
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondInternalError(c, err, "look up profile")
		return nil, false
	}

	name := c.PostForm("whatsapp_name")
	number := c.PostForm("whatsapp_number")
	profile, err = controller.profiles.EnsureForUser(userID, name, number)
	if err != nil {
		if errors.Is(err, profiles.ErrNameRequired) || errors.Is(err, profiles.ErrNumberRequired) {
			respondBadRequest(c, "complete your profile with a whatsapp name and number first")
			return nil, false
		}
		if errors.Is(err, profiles.ErrNumberTaken) {
			respondError(c, http.StatusConflict, err.Error())
			return nil, false
		}
		respondInternalError(c, err, "provision profile")
		return nil, false
	}
	return profile, true
}

// Create files a new book request for the logged-in member.
func (controller *RequestsController) Create(c *gin.Context) {
	profile, ok := controller.currentProfile(c)
	if !ok {
		return
	}

	title := c.PostForm("title")
	author := c.PostForm("author")

	request, err := controller.fulfillment.Create(c.Request.Context(), profile.ID, title, author)
	if err != nil {
		switch {
		case errors.Is(err, requeststore.ErrTitleRequired):
			respondBadRequest(c, err.Error())
		case errors.Is(err, requeststore.ErrRequesterNotActive):
			respondError(c, http.StatusForbidden, err.Error())
		default:
			respondInternalError(c, err, "create request")
		}
		return
	}

	respondCreated(c, request)
}

// MyRequests lists the logged-in member's own requests, newest first.
func (controller *RequestsController) MyRequests(c *gin.Context) {
	profile, ok := controller.currentProfile(c)
	if !ok {
		return
	}

	items, err := controller.fulfillment.MyRequests(c.Request.Context(), profile.ID)
	if err != nil {
		respondInternalError(c, err, "list own requests")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"requests": items, "count": len(items)})
}

// CommunityRequests lists every member's requests in creation order, so
// anyone with the book can step in and fulfil.
func (controller *RequestsController) CommunityRequests(c *gin.Context) {
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
		respondInternalError(c, err, "list community requests")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"requests": items, "count": len(items)})
}

// GetRequest returns one request with its requester and linked book.
func (controller *RequestsController) GetRequest(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	request, err := controller.fulfillment.Request(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "request")
			return
		}
		respondInternalError(c, err, "get request")
		return
	}
	c.IndentedJSON(http.StatusOK, request)
}

// FulfillViaUpload uploads a book and marks the request fulfilled in one
// step. Any member may fulfil a community request this way.
func (controller *RequestsController) FulfillViaUpload(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	input, err := parseBookForm(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	request, book, err := controller.fulfillment.FulfillViaUpload(c.Request.Context(), id, *input)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			respondNotFound(c, "request")
		case errors.Is(err, requeststore.ErrAlreadyResolved),
			errors.Is(err, entities.ErrInvalidTransition):
			// The upload may have landed in the catalog anyway
			payload := gin.H{"error": "request is already resolved"}
			if book != nil {
				payload["book"] = book
			}
			c.IndentedJSON(http.StatusConflict, payload)
		default:
			respondInternalError(c, err, "fulfil request")
		}
		return
	}

	logAuditEvent(c, controller.audit, entities.AuditEventFulfillment, "request_fulfill_upload",
		fmt.Sprintf("Fulfilled request %d with an upload", request.ID), "request", request.ID)
	c.IndentedJSON(http.StatusOK, gin.H{"request": request, "book": book})
}
