package models

import "context"

type identityContextKey struct{}

// Identity carries the authenticated caller through context. It is resolved
// by the API middleware from the external provider's token; everything below
// the API layer treats it as opaque.
type Identity struct {
	ExternalId string
	Email      string
	Name       string
	Role       string
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// WithIdentity attaches an authenticated identity to a context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// GetIdentity retrieves the authenticated identity, or nil if absent.
func GetIdentity(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
