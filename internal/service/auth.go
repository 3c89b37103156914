// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the authentication workflows: signup, login,
// identity lookup and request authentication.
package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mileusna/useragent"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/olegiv/authx/internal/auth"
	"github.com/olegiv/authx/internal/cache"
	"github.com/olegiv/authx/internal/events"
	"github.com/olegiv/authx/internal/model"
	"github.com/olegiv/authx/internal/store"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 6

// userCachePrefix namespaces cached users inside the shared cache.
const userCachePrefix = "user:"

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsRehash(encodedHash string) bool
}

// TokenIssuer issues and verifies identity tokens.
type TokenIssuer interface {
	Issue(subject string) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// LoginGuard tracks failed logins per account.
type LoginGuard interface {
	IsAccountLocked(email string) (bool, time.Duration)
	RecordFailedAttempt(email string) (bool, time.Duration)
	RecordSuccessfulLogin(email string)
}

// AuthServiceConfig holds the collaborators of AuthService.
// Store, Hasher and Tokens are required.
type AuthServiceConfig struct {
	Store      store.UserStore
	Hasher     PasswordHasher
	Tokens     TokenIssuer
	Cache      cache.Cache      // optional user cache
	CacheTTL   time.Duration    // defaults to 5 minutes
	Events     events.Publisher // optional
	Protection LoginGuard       // optional
	GeoIP      CountryLookup    // optional
	Logger     *slog.Logger
}

// CountryLookup resolves an IP address to an ISO country code.
type CountryLookup interface {
	LookupCountry(ip string) string
}

// AuthService orchestrates signup, login and identity lookup.
type AuthService struct {
	store      store.UserStore
	hasher     PasswordHasher
	tokens     TokenIssuer
	users      *cache.TypedCache[model.PublicUser]
	events     events.Publisher
	protection LoginGuard
	geoip      CountryLookup
	logger     *slog.Logger
	sanitizer  *bluemonday.Policy

	dummyOnce sync.Once
	dummyHash string
}

// SignupInput is the signup request.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginInput is the login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	Token string
	User  *model.User
}

// DashboardStats summarizes the user base for the admin dashboard.
type DashboardStats struct {
	TotalUsers  int                `json:"totalUsers"`
	UsersByRole map[model.Role]int `json:"usersByRole"`
}

// NewAuthService creates an AuthService.
func NewAuthService(cfg AuthServiceConfig) (*AuthService, error) {
	if cfg.Store == nil || cfg.Hasher == nil || cfg.Tokens == nil {
		return nil, errors.New("auth service requires a store, a hasher and a token issuer")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Events == nil {
		cfg.Events = events.NopPublisher{}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	s := &AuthService{
		store:      cfg.Store,
		hasher:     cfg.Hasher,
		tokens:     cfg.Tokens,
		events:     cfg.Events,
		protection: cfg.Protection,
		geoip:      cfg.GeoIP,
		logger:     cfg.Logger,
		sanitizer:  bluemonday.StrictPolicy(),
	}
	if cfg.Cache != nil {
		s.users = cache.NewTypedCache[model.PublicUser](cfg.Cache, userCachePrefix, cfg.CacheTTL)
	}
	return s, nil
}

// NormalizeEmail trims and lowercases an email address. Every path that
// stores or looks up an email goes through it.
func NormalizeEmail(email string) string {
	// A Caser keeps state between calls and cannot be shared.
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// NormalizeEmail is the service-bound form of the package function.
func (s *AuthService) NormalizeEmail(email string) string {
	return NormalizeEmail(email)
}

// sanitizeName strips markup and surrounding whitespace from a display name.
func (s *AuthService) sanitizeName(name string) string {
	clean := html.UnescapeString(s.sanitizer.Sanitize(name))
	return strings.TrimSpace(clean)
}

// Signup registers a new user and issues a token for it.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	name := s.sanitizeName(in.Name)
	email := s.NormalizeEmail(in.Email)

	missing := map[string]string{}
	if name == "" {
		missing["name"] = "required"
	}
	if email == "" {
		missing["email"] = "required"
	}
	if in.Password == "" {
		missing["password"] = "required"
	}
	if strings.TrimSpace(in.Role) == "" {
		missing["role"] = "required"
	}
	if len(missing) > 0 {
		return nil, newValidationError("All fields are required", missing)
	}

	role := model.Role(strings.TrimSpace(in.Role))
	if !role.Valid() {
		return nil, newValidationError("Invalid role", map[string]string{"role": "must be User or Admin"})
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return nil, newValidationError(
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength),
			map[string]string{"password": "too short"},
		)
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	// The store's unique constraint decides concurrent signups.
	user, err := s.store.Insert(ctx, &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if errors.Is(err, store.ErrDuplicateEmail) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID, "role", user.Role)
	s.publish(ctx, model.EventUserSignedUp, user, user.Email, in.IPAddress, nil)

	return &AuthResult{Token: token, User: user}, nil
}

// Login checks credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := s.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		fields := map[string]string{}
		if email == "" {
			fields["email"] = "required"
		}
		if in.Password == "" {
			fields["password"] = "required"
		}
		return nil, newValidationError("Email and password required", fields)
	}

	if s.protection != nil {
		if locked, remaining := s.protection.IsAccountLocked(email); locked {
			return nil, &LockedError{RetryAfter: remaining}
		}
	}

	meta := s.clientMetadata(in.UserAgent, in.IPAddress)

	user, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		// Spend the same work as a real verification.
		_, _ = s.hasher.Verify(in.Password, s.dummy())
		s.loginFailed(ctx, nil, email, in.IPAddress, meta)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password for %s: %w", user.ID, err)
	}
	if !ok {
		s.loginFailed(ctx, user, email, in.IPAddress, meta)
		return nil, ErrInvalidCredentials
	}

	if s.protection != nil {
		s.protection.RecordSuccessfulLogin(email)
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, in.Password)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	s.cacheUser(ctx, user)
	s.publish(ctx, model.EventUserLoggedIn, user, user.Email, in.IPAddress, meta)

	return &AuthResult{Token: token, User: user}, nil
}

// Me returns the user with the given id.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return user, nil
}

// Authenticate verifies a bearer token and resolves its subject.
// Token failures return ErrTokenExpired or ErrTokenInvalid; a subject that
// no longer exists returns ErrUserNotFound.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	if s.users != nil {
		if cached, ok := s.users.Get(ctx, claims.Subject); ok {
			return fromPublic(cached), nil
		}
	}

	user, err := s.Me(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	s.cacheUser(ctx, user)
	pub := user.Public()
	return fromPublic(&pub), nil
}

// DashboardStats counts users per role.
func (s *AuthService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	counts, err := s.store.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	stats := &DashboardStats{UsersByRole: make(map[model.Role]int, len(model.Roles))}
	for _, r := range model.Roles {
		stats.UsersByRole[r] = counts[r]
		stats.TotalUsers += counts[r]
	}
	return stats, nil
}

func (s *AuthService) loginFailed(ctx context.Context, user *model.User, email, ip string, meta map[string]any) {
	s.publish(ctx, model.EventUserLoginFail, user, email, ip, meta)

	if s.protection == nil {
		return
	}
	if locked, d := s.protection.RecordFailedAttempt(email); locked {
		m := map[string]any{"duration": d.String()}
		s.publish(ctx, model.EventAccountLocked, user, email, ip, m)
	}
}

func (s *AuthService) rehash(ctx context.Context, user *model.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.Warn("storing rehashed password failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	s.publish(ctx, model.EventPasswordRehash, user, user.Email, "", nil)
}

func (s *AuthService) cacheUser(ctx context.Context, user *model.User) {
	if s.users == nil {
		return
	}
	pub := user.Public()
	if err := s.users.Set(ctx, user.ID, &pub); err != nil {
		s.logger.Debug("caching user failed", "user_id", user.ID, "error", err)
	}
}

func (s *AuthService) publish(ctx context.Context, eventType string, user *model.User, email, ip string, meta map[string]any) {
	e := events.New(eventType)
	e.Email = email
	e.IPAddress = ip
	e.Metadata = meta
	if user != nil {
		e.UserID = user.ID
		e.Role = user.Role
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("publishing event failed", "type", eventType, "error", err)
	}
}

// dummy returns a valid hash used to equalize timing for unknown emails.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("authx-timing-equalizer")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func (s *AuthService) clientMetadata(rawUA, ip string) map[string]any {
	var country string
	if s.geoip != nil && ip != "" {
		country = s.geoip.LookupCountry(ip)
	}
	if rawUA == "" && country == "" {
		return nil
	}

	meta := map[string]any{}
	if country != "" {
		meta["country"] = country
	}
	if rawUA == "" {
		return meta
	}

	ua := useragent.Parse(rawUA)
	meta["browser"] = ua.Name
	meta["os"] = ua.OS
	switch {
	case ua.Bot:
		meta["device"] = "bot"
	case ua.Mobile:
		meta["device"] = "mobile"
	case ua.Tablet:
		meta["device"] = "tablet"
	default:
		meta["device"] = "desktop"
	}
	return meta
}

func fromPublic(p *model.PublicUser) *model.User {
	return &model.User{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Role:      p.Role,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
