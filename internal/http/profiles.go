package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kitabu-club/kitabu/internal/auth"
	"github.com/kitabu-club/kitabu/internal/database/profiles"
)

type ProfilesController struct {
	profiles *profiles.Repository
}

func NewProfilesController(repo *profiles.Repository) *ProfilesController {
	return &ProfilesController{profiles: repo}
}

// GetMyProfile returns the logged-in member's own profile.
func (controller *ProfilesController) GetMyProfile(c *gin.Context) {
	userID := auth.GetUserID(c)
	if userID == 0 {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	profile, err := controller.profiles.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "profile")
			return
		}
		respondInternalError(c, err, "look up profile")
		return
	}
	c.IndentedJSON(http.StatusOK, profile)
}

// UpdateMyProfile lets a member change their display name and number.
func (controller *ProfilesController) UpdateMyProfile(c *gin.Context) {
	userID := auth.GetUserID(c)
	if userID == 0 {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	profile, err := controller.profiles.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "profile")
			return
		}
		respondInternalError(c, err, "look up profile")
		return
	}

	updated, err := controller.profiles.Update(profile.ID,
		c.PostForm("whatsapp_name"), c.PostForm("whatsapp_number"), "")
	if err != nil {
		if errors.Is(err, profiles.ErrNumberTaken) {
			respondError(c, http.StatusConflict, err.Error())
			return
		}
		respondInternalError(c, err, "update profile")
		return
	}
	c.IndentedJSON(http.StatusOK, updated)
}

// GetProfile returns a member profile with its WhatsApp contact link,
// so an admin can reach out about a request directly.
func (controller *ProfilesController) GetProfile(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	profile, err := controller.profiles.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "profile")
			return
		}
		respondInternalError(c, err, "look up profile")
		return
	}

	message := fmt.Sprintf("Hi %s, about your book request on Kitabu:", profile.WhatsAppName)
	c.IndentedJSON(http.StatusOK, gin.H{
		"profile":       profile,
		"whatsapp_link": profile.WhatsAppLink(message),
	})
}

// DeactivateProfile marks a member inactive; their request history stays
// intact but they can no longer file new requests.
func (controller *ProfilesController) DeactivateProfile(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.profiles.Deactivate(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "profile")
			return
		}
		respondInternalError(c, err, "deactivate profile")
		return
	}
	respondSuccess(c, "profile deactivated")
}
