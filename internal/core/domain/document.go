package domain

import "time"

const (
	DocumentStatusDraft   = "draft"
	DocumentStatusActive  = "active"
	DocumentStatusExpired = "expired"
	DocumentStatusRevoked = "revoked"
)

// ProfileDocument places an externally stored file object inside a profile.
type ProfileDocument struct {
	ID               string     `json:"id"`
	ProfileID        string     `json:"profile_id"`
	FileObjectID     string     `json:"file_object_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	DocumentType     string     `json:"document_type,omitempty"`
	DocumentNumber   string     `json:"document_number,omitempty"`
	IssueDate        *time.Time `json:"issue_date,omitempty"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
	IssuingAuthority string     `json:"issuing_authority,omitempty"`
	Status           string     `json:"status"`
	DisplayOrder     int        `json:"display_order"`
	Notes            string     `json:"notes,omitempty"`
	CreatedBy        string     `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// DocumentRegister is a profile's documents together with their list-visible metadata.
type DocumentRegister struct {
	Profile Profile
	Fields  []MetadataField
	Rows    []RegisterRow
}

type RegisterRow struct {
	Document ProfileDocument
	Values   map[string]MetadataValue
}
