package server

import (
	"time"

	"github.com/rzpsarthak13/docsql/internal/core"
)

type tableResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newTableResponse(t *core.TableMeta) tableResponse {
	return tableResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

type columnResponse struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	PrimaryKey bool        `json:"primaryKey"`
	Nullable   bool        `json:"nullable"`
	Default    interface{} `json:"default,omitempty"`
}

type constraintResponse struct {
	Name       string   `json:"name,omitempty"`
	Type       string   `json:"type"`
	Columns    []string `json:"columns"`
	RefTable   string   `json:"refTable,omitempty"`
	RefColumns []string `json:"refColumns,omitempty"`
	OnDelete   string   `json:"onDelete,omitempty"`
	OnUpdate   string   `json:"onUpdate,omitempty"`
}

type describeResponse struct {
	tableResponse
	Columns     []columnResponse     `json:"columns"`
	Constraints []constraintResponse `json:"constraints"`
}
