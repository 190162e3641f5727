// Package middleware holds the gin middleware of the API.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gitlab.com/yelinaung/cashflow-ledger/internal/api/response"
)

// ActorKey is the gin context key holding the authenticated actor id.
const ActorKey = "actorID"

// ClaimActorID is the token claim carrying the actor id.
const ClaimActorID = "user_id"

var errMissingActor = errors.New("token has no user_id claim")

// JWTAuth verifies an HS256 bearer token signed with secret and stores the
// actor id claim under ActorKey.
func JWTAuth(secret []byte) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Abort(c, http.StatusUnauthorized, "unauthenticated", "authorization header required")
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			response.Abort(c, http.StatusUnauthorized, "unauthenticated", "invalid authorization format")
			return
		}

		actorID, err := parseActor(parser, token, secret)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
			return
		}

		c.Set(ActorKey, actorID)
		c.Next()
	}
}

func parseActor(parser *jwt.Parser, token string, secret []byte) (string, error) {
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return "", err
	}

	actorID, _ := claims[ClaimActorID].(string)
	if actorID == "" {
		return "", errMissingActor
	}
	return actorID, nil
}

// SignToken issues an HS256 token for actorID. It is used by tooling and tests.
func SignToken(secret []byte, actorID string, claims jwt.MapClaims) (string, error) {
	all := jwt.MapClaims{ClaimActorID: actorID}
	for k, v := range claims {
		all[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, all).SignedString(secret)
}
