package domain

import (
	"strings"
	"time"
)

type ProfileStatus string

const (
	ProfileDraft    ProfileStatus = "draft"
	ProfileActive   ProfileStatus = "active"
	ProfileClosed   ProfileStatus = "closed"
	ProfileArchived ProfileStatus = "archived"
)

type ProfileEvent string

const (
	ProfileEventOpen    ProfileEvent = "open"
	ProfileEventClose   ProfileEvent = "close"
	ProfileEventArchive ProfileEvent = "archive"
)

// PathSeparator joins ancestor codes in a materialized path.
const PathSeparator = "/"

type Profile struct {
	ID              string        `json:"id"`
	EnterpriseID    string        `json:"enterprise_id"`
	Code            string        `json:"code"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	ProfileType     string        `json:"profile_type,omitempty"`
	ParentID        *string       `json:"parent_id,omitempty"`
	Path            string        `json:"path"`
	IsTemplate      bool          `json:"is_template"`
	RetentionMonths int           `json:"retention_months"`
	Status          ProfileStatus `json:"status"`
	OpenedAt        *time.Time    `json:"opened_at,omitempty"`
	ClosedAt        *time.Time    `json:"closed_at,omitempty"`
	CreatedBy       string        `json:"created_by"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	DeletedAt       *time.Time    `json:"deleted_at,omitempty"`
}

// ProfileTransition is the outcome of applying a lifecycle event.
type ProfileTransition struct {
	From     ProfileStatus
	To       ProfileStatus
	OpenedAt *time.Time
	ClosedAt *time.Time
}

// Transition applies event to p's lifecycle at time now. p is not mutated.
func (p Profile) Transition(event ProfileEvent, now time.Time) (ProfileTransition, error) {
	out := ProfileTransition{From: p.Status, OpenedAt: p.OpenedAt, ClosedAt: p.ClosedAt}
	switch {
	case event == ProfileEventOpen && p.Status == ProfileDraft:
		out.To = ProfileActive
		out.OpenedAt = &now
	case event == ProfileEventOpen && p.Status == ProfileClosed:
		out.To = ProfileActive
		out.ClosedAt = nil
	case event == ProfileEventClose && p.Status == ProfileActive:
		out.To = ProfileClosed
		out.ClosedAt = &now
	case event == ProfileEventArchive && (p.Status == ProfileActive || p.Status == ProfileClosed):
		out.To = ProfileArchived
	default:
		return ProfileTransition{}, InvalidTransition("profile", p.ID, string(p.Status), string(event))
	}
	return out, nil
}

func (p Profile) IsArchived() bool {
	return p.Status == ProfileArchived
}

// ChildPath computes the materialized path of a child with the given code.
func ChildPath(parentPath, code string) string {
	if parentPath == "" {
		return code
	}
	return parentPath + PathSeparator + code
}

// RebasePath rewrites a descendant path after its ancestor moved from oldPrefix to newPrefix.
func RebasePath(path, oldPrefix, newPrefix string) string {
	if path == oldPrefix {
		return newPrefix
	}
	if strings.HasPrefix(path, oldPrefix+PathSeparator) {
		return newPrefix + strings.TrimPrefix(path, oldPrefix)
	}
	return path
}

type ProfileFilter struct {
	EnterpriseID string
	ParentID     *string
	RootsOnly    bool
	Status       ProfileStatus
	ProfileType  string
	TemplateOnly bool
}
