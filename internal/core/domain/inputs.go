package domain

import "time"

type ProfileInput struct {
	EnterpriseID    string  `json:"enterprise_id"`
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	ProfileType     string  `json:"profile_type"`
	ParentID        *string `json:"parent_id"`
	IsTemplate      bool    `json:"is_template"`
	RetentionMonths int     `json:"retention_months"`
}

// ProfileUpdate carries descriptive attributes only; nil leaves a value unchanged.
type ProfileUpdate struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	ProfileType     *string `json:"profile_type"`
	IsTemplate      *bool   `json:"is_template"`
	RetentionMonths *int    `json:"retention_months"`
}

type TemplateInstance struct {
	EnterpriseID string  `json:"enterprise_id"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	ParentID     *string `json:"parent_id"`
}

type FieldInput struct {
	ProfileID      *string  `json:"profile_id"`
	Name           string   `json:"name"`
	Label          string   `json:"label"`
	DataType       DataType `json:"data_type"`
	Required       bool     `json:"required"`
	DefaultValue   string   `json:"default_value"`
	Pattern        string   `json:"pattern"`
	PatternMessage string   `json:"pattern_message"`
	MinValue       *float64 `json:"min_value"`
	MaxValue       *float64 `json:"max_value"`
	MaxLength      *int     `json:"max_length"`
	Options        []string `json:"options"`
	DisplayOrder   *int     `json:"display_order"`
	VisibleInList  bool     `json:"visible_in_list"`
	Searchable     bool     `json:"searchable"`
	Enabled        *bool    `json:"enabled"`
}

type DocumentInput struct {
	FileObjectID     string     `json:"file_object_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	DocumentType     string     `json:"document_type"`
	DocumentNumber   string     `json:"document_number"`
	IssueDate        *time.Time `json:"issue_date"`
	ExpiryDate       *time.Time `json:"expiry_date"`
	IssuingAuthority string     `json:"issuing_authority"`
	Status           string     `json:"status"`
	Notes            string     `json:"notes"`
}

type LoanRequest struct {
	EnterpriseID string            `json:"enterprise_id"`
	BorrowerID   string            `json:"borrower_id"`
	BorrowerName string            `json:"borrower_name"`
	Department   string            `json:"department"`
	DueDate      time.Time         `json:"due_date"`
	LoanType     string            `json:"loan_type"`
	Purpose      string            `json:"purpose"`
	Items        []LoanItemRequest `json:"items"`
}

type LoanItemRequest struct {
	DocumentID string `json:"document_id"`
	Notes      string `json:"notes"`
}
