package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/academy-ledger/internal/platform/authz"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireCapability(t *testing.T) {
	gin.SetMode(gin.TestMode)
	checker := authz.NewChecker(authz.DefaultRoles())

	newRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(CorrelationID())
		router.Use(Actor())
		router.PATCH("/transactions/:id/cancel", RequireCapability(checker, authz.TransactionsCancel), func(c *gin.Context) {
			actor, _ := GetActor(c)
			c.JSON(http.StatusOK, gin.H{"actor_id": actor.ID})
		})
		return router
	}

	tests := []struct {
		name           string
		actorID        string
		roles          string
		expectedStatus int
		expectedCode   string
	}{
		{"Allowed", "12", "accountant, admin", http.StatusOK, ""},
		{"MissingCapability", "12", "accountant", http.StatusForbidden, "FORBIDDEN"},
		{"Anonymous", "", "admin", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"MalformedActorID", "twelve", "admin", http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPatch, "/transactions/5/cancel", nil)
			if tt.actorID != "" {
				req.Header.Set(ActorIDHeader, tt.actorID)
			}
			req.Header.Set(ActorRolesHeader, tt.roles)
			rr := httptest.NewRecorder()

			newRouter().ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			if tt.expectedCode == "" {
				assert.Equal(t, float64(12), body["actor_id"])
				return
			}
			errorField, ok := body["error"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, tt.expectedCode, errorField["code"])
			assert.NotEmpty(t, body["correlation_id"])
		})
	}
}
