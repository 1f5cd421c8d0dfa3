package guard

import (
	"net/http"

	"github.com/fentro/cms-console/internal/auth"
	"github.com/gin-gonic/gin"
)

// SessionReader is the read-only view of the session a guard needs.
type SessionReader interface {
	Snapshot() auth.Snapshot
}

// Middleware applies the guard for access to every request of a route group.
// Loading renders a loading view descriptor; redirects use 303 See Other.
func Middleware(reader SessionReader, access Access) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := Evaluate(access, reader.Snapshot(), c.Request.URL.RequestURI())
		switch decision.Outcome {
		case OutcomeRender:
			c.Next()
		case OutcomeLoading:
			c.AbortWithStatusJSON(http.StatusAccepted, gin.H{"view": "loading", "guard": decision})
		default:
			c.Header("Location", decision.Location)
			c.AbortWithStatusJSON(http.StatusSeeOther, gin.H{"view": "redirect", "guard": decision})
		}
	}
}
