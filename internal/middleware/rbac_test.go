package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/swimbuddz/academy-api/internal/models"
)

func rbacContext(claims *models.JWTClaims, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = params
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	return c, rec
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	c, rec := rbacContext(nil, nil)

	RBAC("ADMIN")(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRBACAllowsListedRole(t *testing.T) {
	c, _ := rbacContext(&models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, nil)

	RBAC("ADMIN")(c)

	assert.False(t, c.IsAborted())
}

func TestRBACForbidsUnlistedRole(t *testing.T) {
	c, rec := rbacContext(&models.JWTClaims{UserID: "u1", Role: models.RoleMember}, nil)

	RBAC("ADMIN", "COACH")(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACSelfMatchesCoachParam(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleCoach, MemberID: "coach-7"}
	c, _ := rbacContext(claims, gin.Params{{Key: "coachId", Value: "coach-7"}})

	RBAC("ADMIN", "SELF")(c)

	assert.False(t, c.IsAborted())
}

func TestRBACSelfRejectsOtherCoach(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleCoach, MemberID: "coach-7"}
	c, rec := rbacContext(claims, gin.Params{{Key: "coachId", Value: "coach-9"}})

	RBAC("ADMIN", "SELF")(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
