package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/ccpq/academy-service/internal/config"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/repositories/casdoor"
	"github.com/ccpq/academy-service/internal/utils"
)

const (
	contextUserID       = "user_id"
	contextUser         = "user"
	contextUserRole     = "user_role"
	contextUserEmail    = "user_email"
	contextCapabilities = "capabilities"
)

type tokenParser func(token string) (*casdoorsdk.Claims, error)

// CasdoorAuthMiddleware provides authentication using Casdoor SDK
type CasdoorAuthMiddleware struct {
	parse    tokenParser
	userRepo repositories.UserRepository
	logger   utils.Logger
}

// NewCasdoorAuthMiddleware creates a new Casdoor authentication middleware
func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)
	return newCasdoorAuthMiddleware(client.ParseJwtToken, userRepo, logger)
}

func newCasdoorAuthMiddleware(parse tokenParser, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	return &CasdoorAuthMiddleware{
		parse:    parse,
		userRepo: userRepo,
		logger:   logger,
	}
}

// AuthMiddleware rejects requests without a valid bearer token
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := cam.authenticate(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "unauthorized",
				Details: err.Error(),
			})
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the user when a valid token is present.
// Checkout and capture accept anonymous buyers.
func (cam *CasdoorAuthMiddleware) OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}

		user, err := cam.authenticate(c)
		if err != nil {
			utils.GetLogger(c, cam.logger).Debug("Ignoring invalid optional token", "error", err)
			c.Next()
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// RequireCapability checks the capability set resolved by the auth middleware
func (cam *CasdoorAuthMiddleware) RequireCapability(required ...models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		caps := GetCapabilitiesFromContext(c)
		for _, capability := range required {
			if !caps.Has(capability) {
				c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
					Message: "forbidden",
					Details: fmt.Sprintf("missing capability: %s", capability),
				})
				return
			}
		}
		c.Next()
	}
}

func (cam *CasdoorAuthMiddleware) authenticate(c *gin.Context) (*models.User, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, errors.New("authorization header missing")
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
		return nil, errors.New("invalid authorization header format")
	}

	claims, err := cam.parse(tokenParts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	return cam.extractUserFromClaims(c.Request.Context(), claims)
}

// extractUserFromClaims prefers the directory record and falls back to the token
func (cam *CasdoorAuthMiddleware) extractUserFromClaims(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	userID := claims.Id
	if userID == "" {
		return nil, errors.New("invalid user ID in token")
	}

	user, err := cam.userRepo.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repositories.ErrUserNotFound) {
			cam.logger.Warn("User lookup failed, using token claims", "user_id", userID, "error", err)
		}
		user = casdoor.ToModel(&claims.User)
	}

	return user, nil
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(contextUserID, user.ID)
	c.Set(contextUser, user)
	c.Set(contextUserRole, user.Role)
	c.Set(contextUserEmail, user.Email)
	c.Set(contextCapabilities, models.CapabilitiesForRole(user.Role))
}

// GetUserFromContext extracts user from Gin context
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	user, exists := c.Get(contextUser)
	if !exists {
		return nil, fmt.Errorf("user not found in context")
	}

	userModel, ok := user.(*models.User)
	if !ok {
		return nil, fmt.Errorf("invalid user type in context")
	}

	return userModel, nil
}

// GetUserIDFromContext extracts user ID from Gin context
func GetUserIDFromContext(c *gin.Context) (string, error) {
	userID, exists := c.Get(contextUserID)
	if !exists {
		return "", fmt.Errorf("user ID not found in context")
	}

	id, ok := userID.(string)
	if !ok {
		return "", fmt.Errorf("invalid user ID type in context")
	}

	return id, nil
}

// GetCapabilitiesFromContext returns an empty set for anonymous requests
func GetCapabilitiesFromContext(c *gin.Context) models.Capabilities {
	if value, exists := c.Get(contextCapabilities); exists {
		if caps, ok := value.(models.Capabilities); ok {
			return caps
		}
	}
	return models.Capabilities{}
}

// optionalUserID is empty for anonymous requests
func optionalUserID(c *gin.Context) string {
	id, _ := GetUserIDFromContext(c)
	return id
}
