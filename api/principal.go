package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hotelguru/hotelguru/internal/domain"
)

const (
	headerUserID    = "X-User-ID"
	headerUserRoles = "X-User-Roles"
)

// principalFrom reads the already-authenticated acting party from the
// identity headers set by the authenticating proxy. Token verification
// happens upstream; unknown role values are rejected here at the
// boundary.
func principalFrom(r *http.Request) (domain.Principal, error) {
	rawID := r.Header.Get(headerUserID)
	if rawID == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing %s header", domain.ErrValidation, headerUserID)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return domain.Principal{}, fmt.Errorf("%w: invalid %s header", domain.ErrValidation, headerUserID)
	}

	var roles domain.Roles
	for _, raw := range strings.Split(r.Header.Get(headerUserRoles), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		role, err := domain.ParseRole(raw)
		if err != nil {
			return domain.Principal{}, err
		}
		roles = append(roles, role)
	}
	return domain.Principal{ID: id, Roles: roles}, nil
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid reservation id", domain.ErrValidation)
	}
	return id, nil
}
