package archive

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/castarchive/castarchive/internal/api/objects"
	"github.com/castarchive/castarchive/internal/db"
	"github.com/castarchive/castarchive/internal/models"
)

const defaultListLimit = 20

// CastAPI provides cast-related archive methods
type CastAPI struct {
	repo   *db.Repository
	loader *objects.CastLoader
}

// NewCastAPI creates a new cast API
func NewCastAPI(repo *db.Repository) *CastAPI {
	return &CastAPI{repo: repo, loader: objects.NewCastLoader(repo)}
}

type getCastParams struct {
	Hash string `json:"hash" validate:"required,hexadecimal"`
}

// GetCast handles archive.get_cast. Unknown hashes return null.
func (a *CastAPI) GetCast(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p getCastParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	row, err := a.repo.Casts().GetByHash(ctx.Request.Context(), p.Hash)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	casts, err := a.loader.LoadCasts(ctx.Request.Context(), []*models.CastRecord{row})
	if err != nil {
		return nil, err
	}
	return casts[0], nil
}

type listUserCastsParams struct {
	FID   uint64 `json:"fid" validate:"gt=0"`
	Limit int    `json:"limit" validate:"gte=0,lte=100"`
}

// ListUserCasts handles archive.list_user_casts, newest first
func (a *CastAPI) ListUserCasts(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p listUserCastsParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	limit := p.Limit
	if limit == 0 {
		limit = defaultListLimit
	}

	rows, err := a.repo.Casts().ListByAuthor(ctx.Request.Context(), p.FID, limit)
	if err != nil {
		return nil, err
	}
	return a.loader.LoadCasts(ctx.Request.Context(), rows)
}

type countRepliesParams struct {
	FID  uint64 `json:"fid" validate:"gt=0"`
	Hash string `json:"hash" validate:"required,hexadecimal"`
}

// CountReplies handles archive.count_replies
func (a *CastAPI) CountReplies(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var p countRepliesParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	n, err := a.repo.Casts().CountReplies(ctx.Request.Context(), p.FID, p.Hash)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"fid": p.FID, "hash": p.Hash, "count": n}, nil
}
