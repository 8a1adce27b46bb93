package model

import (
	"time"

	"gorm.io/gorm"
)

// AccessKey is an inbound API credential. Only the salted SHA-256 hash of the
// key is stored; the plaintext is shown once at creation time.
type AccessKey struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Name         string     `json:"name" gorm:"size:255;uniqueIndex;not null"`
	KeyHash      string     `json:"-" gorm:"size:64;uniqueIndex;not null"`
	Prefix       string     `json:"prefix" gorm:"size:12;not null"` // first chars of the plaintext, for display
	Status       string     `json:"status" gorm:"size:20;default:'enabled';index:idx_access_keys_status"` // enabled/disabled
	RequestCount int        `json:"request_count" gorm:"default:0"`
	LastUsedAt   *time.Time `json:"last_used_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at" gorm:"index:idx_access_keys_deleted_at"`
}

func (AccessKey) TableName() string {
	return "access_keys"
}

// MaskedKey returns a display form like "gf_ab12***".
func (a *AccessKey) MaskedKey() string {
	if a.Prefix == "" {
		return "***"
	}
	return a.Prefix + "***"
}

// IsAvailable reports whether the key may authenticate requests.
func (a *AccessKey) IsAvailable() bool {
	return a.Status == "enabled" && a.DeletedAt == nil
}

// BeforeUpdate keeps UpdatedAt current on partial updates.
func (a *AccessKey) BeforeUpdate(tx *gorm.DB) error {
	a.UpdatedAt = time.Now()
	return nil
}
