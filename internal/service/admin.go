package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"figmist-store/internal/localstore"
	"figmist-store/internal/models"
	"figmist-store/internal/util"

	"go.uber.org/zap"
)

const roleAdmin = "admin"

// Authorizer gates admin-only operations
type Authorizer interface {
	RequireAdmin(ctx context.Context) error
}

// AdminCredentials is the single accepted login pair
type AdminCredentials struct {
	Email    string
	Password string
}

// AdminGuard keeps the admin session marker of one storefront session.
// There is no expiry: the marker lives until Logout.
type AdminGuard struct {
	storage localstore.Storage
	creds   AdminCredentials
	now     func() time.Time
	logger  *zap.Logger
}

// NewAdminGuard creates a guard over a session-scoped storage
func NewAdminGuard(storage localstore.Storage, creds AdminCredentials) *AdminGuard {
	return &AdminGuard{
		storage: storage,
		creds:   creds,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// Login stores the session marker when the credentials match
func (g *AdminGuard) Login(ctx context.Context, email, password string) (*models.AdminSession, error) {
	ctx, span := util.StartSpan(ctx, "AdminGuard.Login")
	defer span.End()

	email = strings.TrimSpace(email)
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(g.creds.Email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(g.creds.Password)) == 1
	if !emailOK || !passOK {
		util.AdminLoginsTotal.WithLabelValues("rejected").Inc()
		g.logger.Info("Admin login rejected", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}

	session := &models.AdminSession{
		Email:     email,
		Role:      roleAdmin,
		LoginTime: g.now(),
	}
	if err := localstore.SetJSON(ctx, g.storage, localstore.KeyAdminSession, session); err != nil {
		util.AdminLoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	util.AdminLoginsTotal.WithLabelValues("accepted").Inc()
	g.logger.Info("Admin logged in", zap.String("email", email))
	return session, nil
}

// Logout removes the session marker
func (g *AdminGuard) Logout(ctx context.Context) error {
	return g.storage.Remove(ctx, localstore.KeyAdminSession)
}

// CurrentSession returns the stored marker, or nil when logged out.
// An unreadable marker counts as logged out.
func (g *AdminGuard) CurrentSession(ctx context.Context) *models.AdminSession {
	var session models.AdminSession
	found, err := localstore.GetJSON(ctx, g.storage, localstore.KeyAdminSession, &session)
	if err != nil {
		g.logger.Warn("Failed to read admin session", zap.Error(err))
		return nil
	}
	if !found || session.Role != roleAdmin {
		return nil
	}
	return &session
}

// RequireAdmin returns ErrUnauthorized unless an admin is logged in
func (g *AdminGuard) RequireAdmin(ctx context.Context) error {
	if g.CurrentSession(ctx) == nil {
		return ErrUnauthorized
	}
	return nil
}
