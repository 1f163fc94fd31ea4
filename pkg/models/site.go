package models

import "time"

type Site struct {
	ID             string    `json:"id" bson:"_id"`
	BaseURL        string    `json:"baseURL" bson:"base_url"`
	OrganizationID string    `json:"organizationId" bson:"organization_id"`
	IsLive         bool      `json:"isLive" bson:"is_live"`
	DeliveryType   string    `json:"deliveryType,omitempty" bson:"delivery_type,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty" bson:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty" bson:"updated_at,omitempty"`
}

type Organization struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"createdAt,omitempty" bson:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" bson:"updated_at,omitempty"`
}
