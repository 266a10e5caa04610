// Package scope resolves the acting principal and its tenant/branch reach.
package scope

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleOwner   Role = "owner"
	RoleStaff   Role = "staff"
	RoleStudent Role = "student"
)

const (
	HeaderUser      = "X-User-Name"
	HeaderLibrary   = "X-Library-Id"
	HeaderBranches  = "X-Branch-Ids"
	HeaderRole      = "X-User-Role"
	principalCtxKey = "scope.principal"
)

var ErrUnauthenticated = errors.New("scope: unauthenticated")

// Principal is the identity a request acts as, as handed over by the session layer.
type Principal struct {
	UserID    string
	LibraryID string
	BranchIDs []string
	Role      Role
}

func (p Principal) Authenticated() bool {
	return p.UserID != "" && (p.LibraryID != "" || p.Role == RoleAdmin)
}

// Manager reports whether the principal may change resources and subscriptions somewhere.
func (p Principal) Manager() bool {
	switch p.Role {
	case RoleAdmin, RoleOwner, RoleStaff:
		return p.Authenticated()
	}
	return false
}

// CanManage reports whether the principal may mutate data of the given branch.
func (p Principal) CanManage(libraryID, branchID string) bool {
	if !p.Authenticated() {
		return false
	}
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleOwner:
		return p.LibraryID == libraryID
	case RoleStaff:
		return p.LibraryID == libraryID && p.inBranch(branchID)
	}
	return false
}

// CanView reports whether the principal may read data of the given branch.
func (p Principal) CanView(libraryID, branchID string) bool {
	if p.CanManage(libraryID, branchID) {
		return true
	}
	return p.Authenticated() && p.Role == RoleStudent && p.LibraryID == libraryID
}

func (p Principal) inBranch(branchID string) bool {
	for _, id := range p.BranchIDs {
		if id == branchID {
			return true
		}
	}
	return false
}

// FromHeaders reads the principal forwarded by the session layer.
func FromHeaders(h http.Header) (Principal, error) {
	p := Principal{
		UserID:    strings.TrimSpace(h.Get(HeaderUser)),
		LibraryID: strings.TrimSpace(h.Get(HeaderLibrary)),
		Role:      Role(strings.ToLower(strings.TrimSpace(h.Get(HeaderRole)))),
	}
	for _, id := range strings.Split(h.Get(HeaderBranches), ",") {
		if id = strings.TrimSpace(id); id != "" {
			p.BranchIDs = append(p.BranchIDs, id)
		}
	}
	switch p.Role {
	case RoleAdmin, RoleOwner, RoleStaff, RoleStudent:
	case "":
		p.Role = RoleStudent
	default:
		return Principal{}, ErrUnauthenticated
	}
	if !p.Authenticated() {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}

// Middleware rejects requests without a principal and stores it on the context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := FromHeaders(c.Request.Header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   HeaderUser + " and " + HeaderLibrary + " headers are required",
			})
			return
		}
		c.Set(principalCtxKey, p)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// FromGin returns the principal stored by Middleware.
func FromGin(c *gin.Context) Principal {
	if v, ok := c.Get(principalCtxKey); ok {
		if p, ok := v.(Principal); ok {
			return p
		}
	}
	p, _ := FromContext(c.Request.Context())
	return p
}
