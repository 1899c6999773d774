package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"studio-backend/internal/models"
)

const (
	// WaitlistEmailKey holds the verified email of the pass holder.
	WaitlistEmailKey = "waitlist_email"

	waitlistPassTTL    = 30 * 24 * time.Hour
	waitlistPassIssuer = "studio-backend/waitlist"
)

// IssueWaitlistPass signs an HS256 token proving email joined the waitlist.
func IssueWaitlistPass(secret, email string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   email,
		Issuer:    waitlistPassIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(waitlistPassTTL)),
	})
	return token.SignedString([]byte(secret))
}

// VerifyWaitlistPass returns the email carried by a valid pass.
func VerifyWaitlistPass(secret, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(waitlistPassIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// WaitlistPass rejects requests without a valid "Bearer <pass>" header.
func WaitlistPass(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "join the waitlist to use the studio"})
			return
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenString) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid authorization header format"})
			return
		}

		email, err := VerifyWaitlistPass(secret, strings.TrimSpace(tokenString))
		if err != nil {
			message := "invalid waitlist pass"
			if errors.Is(err, jwt.ErrTokenExpired) {
				message = "waitlist pass has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: message})
			return
		}

		c.Set(WaitlistEmailKey, email)
		c.Next()
	}
}
