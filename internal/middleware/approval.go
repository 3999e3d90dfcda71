package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
	"github.com/noah-isme/sessionguard/pkg/response"
)

// ContextUserKey is the gin context key storing the session's user.
const ContextUserKey = "currentUser"

type userLookup interface {
	User(ctx context.Context, id string) (*models.User, error)
}

// RequireApproved loads the session's user and refuses accounts that are
// still pending approval or no longer active. It must run after Session.
func RequireApproved(users userLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFromContext(c)
		if session == nil {
			response.Abort(c, appErrors.ErrSessionInvalid)
			return
		}

		user, err := users.User(c.Request.Context(), session.UserID)
		if err != nil {
			response.Abort(c, err)
			return
		}
		if !user.IsActive || user.AccountStatus != models.AccountActive {
			response.Abort(c, appErrors.ErrAccountInactive)
			return
		}
		if !user.IsApproved {
			response.Abort(c, appErrors.ErrAccountPending)
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// UserFromContext returns the user loaded by RequireApproved.
func UserFromContext(c *gin.Context) *models.User {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
