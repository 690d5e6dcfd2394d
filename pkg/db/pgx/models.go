package pgx

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Graph states.
const (
	GraphStateReady    = "ready"
	GraphStateDeleting = "deleting"
)

type Graph struct {
	ID          int64              `json:"id"`
	Uuid        pgtype.UUID        `json:"uuid"`
	Label       string             `json:"label"`
	Description string             `json:"description"`
	OwnerID     int64              `json:"owner_id"`
	IsFavorite  bool               `json:"is_favorite"`
	State       string             `json:"state"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
}

type Entity struct {
	ID          int64              `json:"id"`
	Label       string             `json:"label"`
	Author      string             `json:"author"`
	Description string             `json:"description"`
	SourceKey   string             `json:"source_key"`
	OwnerID     int64              `json:"owner_id"`
	IsFavorite  bool               `json:"is_favorite"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
}
