package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/telemed-orchestrator/internal/auth"
)

const (
	ctxKeyUserID  = "userID"
	ctxKeyCaller  = "auth.caller"
	ctxKeyAuthErr = "auth.err"
)

// BearerAuth verifies the Authorization bearer token when one is present.
//
// It never rejects a request: function endpoints decide per action whether a
// caller is required and which message to return, and the payment webhook
// authenticates with its own header. On success the caller and its user id
// are stored in the context; on failure the verification error is.
func BearerAuth(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := v.VerifyHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.Set(ctxKeyAuthErr, err)
			c.Next()
			return
		}
		c.Set(ctxKeyCaller, caller)
		c.Set(ctxKeyUserID, caller.UserID)
		c.Next()
	}
}

// CallerFrom returns the verified caller, or the reason there is none.
func CallerFrom(c *gin.Context) (*auth.Caller, error) {
	if v, ok := c.Get(ctxKeyCaller); ok {
		if caller, ok := v.(*auth.Caller); ok && caller != nil {
			return caller, nil
		}
	}
	if v, ok := c.Get(ctxKeyAuthErr); ok {
		if err, ok := v.(error); ok {
			return nil, err
		}
	}
	return nil, auth.ErrMissingToken
}
