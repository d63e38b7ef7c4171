package handler

import (
	"github.com/cuongbtq/trendrider/internal/domain"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// SetIdentity stores the caller identity on the request context.
func SetIdentity(c *gin.Context, identity domain.Identity) {
	c.Set(identityKey, identity)
}

// IdentityFrom returns the caller identity, anonymous when none was set.
func IdentityFrom(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(domain.Identity); ok {
			return identity
		}
	}
	return domain.Identity{}
}
