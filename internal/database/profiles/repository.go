// Package profiles provides database operations for requester profiles.
//
// # Usage
//
//	repo := profiles.NewRepository(db)
//	profile, err := repo.EnsureForUser(userID, "Asha", "+255700000001")
package profiles

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/kitabu-club/kitabu/internal/entities"
)

var (
	ErrNameRequired   = errors.New("whatsapp name is required")
	ErrNumberRequired = errors.New("whatsapp number is required")
	ErrNumberTaken    = errors.New("a profile with this whatsapp number already exists")
)

// Repository handles all profile database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new profiles repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create creates a new profile. The WhatsApp number must be unique across
// the group.
func (r *Repository) Create(userID *uint, name, number string) (*entities.Profile, error) {
	name = strings.TrimSpace(name)
	number = strings.TrimSpace(number)
	if name == "" {
		return nil, ErrNameRequired
	}
	if number == "" {
		return nil, ErrNumberRequired
	}

	var existing entities.Profile
	err := r.db.Where("whats_app_number = ?", number).First(&existing).Error
	if err == nil {
		return nil, ErrNumberTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing profile: %w", err)
	}

	profile := &entities.Profile{
		UserID:         userID,
		WhatsAppName:   name,
		WhatsAppNumber: number,
		IsActive:       true,
	}

	if err := r.db.Create(profile).Error; err != nil {
		return nil, err
	}

	return profile, nil
}

// GetByID retrieves a profile by ID.
func (r *Repository) GetByID(id uint) (*entities.Profile, error) {
	var profile entities.Profile
	err := r.db.First(&profile, id).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByUserID retrieves the profile linked to an account.
func (r *Repository) GetByUserID(userID uint) (*entities.Profile, error) {
	var profile entities.Profile
	err := r.db.Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByNumber retrieves a profile by its WhatsApp number.
func (r *Repository) GetByNumber(number string) (*entities.Profile, error) {
	var profile entities.Profile
	err := r.db.Where("whats_app_number = ?", strings.TrimSpace(number)).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// EnsureForUser returns the profile linked to the account, creating one if
// it does not exist yet. Accounts may predate profiles, so any entry point
// that needs a profile calls this instead of assuming one exists.
func (r *Repository) EnsureForUser(userID uint, name, number string) (*entities.Profile, error) {
	var profile entities.Profile
	err := r.db.Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}

	return r.Create(&userID, name, number)
}

// Update modifies the profile fields a member may edit themselves.
func (r *Repository) Update(id uint, name, number, avatarKey string) (*entities.Profile, error) {
	profile, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	number = strings.TrimSpace(number)
	if number != "" && number != profile.WhatsAppNumber {
		var other entities.Profile
		err := r.db.Where("whats_app_number = ? AND id <> ?", number, id).First(&other).Error
		if err == nil {
			return nil, ErrNumberTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check existing profile: %w", err)
		}
		profile.WhatsAppNumber = number
	}
	if name = strings.TrimSpace(name); name != "" {
		profile.WhatsAppName = name
	}
	if avatarKey != "" {
		profile.AvatarKey = avatarKey
	}

	if err := r.db.Save(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// Deactivate marks a profile as inactive. Profiles are never hard-deleted:
// requests reference them and history must stay intact.
func (r *Repository) Deactivate(id uint) error {
	result := r.db.Model(&entities.Profile{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
