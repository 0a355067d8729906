package model

import "time"

type Professional struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"userId"`
	DisplayName   string    `db:"display_name" json:"displayName"`
	AverageRating float64   `db:"average_rating" json:"averageRating"`
	ReviewCount   int       `db:"review_count" json:"reviewCount"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}
