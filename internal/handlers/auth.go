package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/practice-service/internal/config"
)

var errMissingSubject = errors.New("token has no user id")

// TokenVerifier resolves a bearer token to a user ID
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// CasdoorVerifier checks tokens issued by Casdoor
type CasdoorVerifier struct{}

// NewCasdoorVerifier initializes the Casdoor SDK from config.
func NewCasdoorVerifier(cfg config.CasdoorConfig) *CasdoorVerifier {
	casdoorsdk.InitConfig(cfg.Endpoint, cfg.ClientID, cfg.ClientSecret, cfg.Certificate, cfg.Organization, cfg.Application)
	return &CasdoorVerifier{}
}

func (v *CasdoorVerifier) Verify(token string) (string, error) {
	claims, err := casdoorsdk.ParseJwtToken(token)
	if err != nil {
		return "", err
	}
	if claims.User.Id != "" {
		return claims.User.Id, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", errMissingSubject
}

// AuthMiddleware verifies the bearer token and sets user_id in context.
// Websocket clients cannot set headers, so a token query parameter is accepted too.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
					Message: "Invalid Authorization token format",
				})
				return
			}
			token = strings.TrimSpace(parts[1])
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing Authorization token",
			})
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid or expired token",
			})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
