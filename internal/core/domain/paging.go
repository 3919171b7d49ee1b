package domain

import "strings"

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

type PageRequest struct {
	Page  int    `json:"page"`
	Size  int    `json:"size"`
	Query string `json:"query,omitempty"`
	Sort  string `json:"sort,omitempty"`
	Desc  bool   `json:"desc,omitempty"`
}

// Normalize clamps page and size and restricts Sort to allowed keys (first is the default).
func (r PageRequest) Normalize(allowedSorts ...string) PageRequest {
	out := r
	if out.Page < 1 {
		out.Page = 1
	}
	if out.Size <= 0 {
		out.Size = DefaultPageSize
	}
	if out.Size > MaxPageSize {
		out.Size = MaxPageSize
	}
	out.Query = strings.TrimSpace(out.Query)
	out.Sort = strings.ToLower(strings.TrimSpace(out.Sort))
	if len(allowedSorts) > 0 {
		valid := false
		for _, s := range allowedSorts {
			if s == out.Sort {
				valid = true
				break
			}
		}
		if !valid {
			out.Sort = allowedSorts[0]
		}
	}
	return out
}

func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.Size
}

type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}
