package models

import (
	"time"

	"github.com/google/uuid"
)

// LogicModule is a backend microservice registration. The gateway routes
// inbound requests by matching the first path segment against EndpointName.
// Stored in gateway_logic_modules.
type LogicModule struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	EndpointName string     `json:"endpoint_name"` // immutable after creation
	Endpoint     string     `json:"endpoint"`      // absolute base URL of the service
	DocsEndpoint string     `json:"docs_endpoint"` // where the OpenAPI document is served
	IsLocal      bool       `json:"is_local"`      // served from inside the gateway process
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// LogicModuleModel is a single resource type within a logic module.
// (LogicModuleEndpointName, Model) is unique.
// Stored in gateway_logic_module_models.
type LogicModuleModel struct {
	ID                      uuid.UUID `json:"id"`
	LogicModuleEndpointName string    `json:"logic_module_endpoint_name"`
	Model                   string    `json:"model"`
	Endpoint                string    `json:"endpoint"`          // path under the logic module, e.g. "/products/"
	LookupFieldName         string    `json:"lookup_field_name"` // response body field carrying the PK, e.g. "product_uuid"
	IsLocal                 bool      `json:"is_local"`
	CreatedAt               time.Time `json:"created_at"`
}
