package domain

import "time"

// TenantStatus is the lifecycle state of a tenant registry entry.
type TenantStatus string

const (
	TenantActive   TenantStatus = "active"
	TenantDisabled TenantStatus = "disabled"
)

// Tenant is a registry entry identifying one isolated customer unit. It
// lives only in the system database; its code determines which per-tenant
// database requests carrying that code route to.
type Tenant struct {
	ID        ID
	Code      string
	Name      string
	Status    TenantStatus
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Routable reports whether requests may route to this tenant's database.
func (t Tenant) Routable() bool {
	return t.Status == TenantActive && !t.IsDeleted
}
