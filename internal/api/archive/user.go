package archive

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/castarchive/castarchive/internal/api/objects"
	"github.com/castarchive/castarchive/internal/db"
	"github.com/castarchive/castarchive/internal/models"
)

// UserAPI provides user-related archive methods
type UserAPI struct {
	repo *db.Repository
}

// NewUserAPI creates a new user API
func NewUserAPI(repo *db.Repository) *UserAPI {
	return &UserAPI{repo: repo}
}

type getUserParams struct {
	FID uint64 `json:"fid" validate:"gt=0"`
}

// GetUser handles archive.get_user. Unknown fids resolve to a placeholder.
func (a *UserAPI) GetUser(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p getUserParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	user, err := a.repo.Users().GetByFID(ctx.Request.Context(), p.FID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = models.PlaceholderUser(p.FID)
	}
	return objects.UserObject(user), nil
}

// GetStats handles archive.get_stats
func (a *UserAPI) GetStats(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	users, err := a.repo.Users().Count(ctx.Request.Context())
	if err != nil {
		return nil, err
	}
	casts, err := a.repo.Casts().Count(ctx.Request.Context())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"users": users, "casts": casts}, nil
}
