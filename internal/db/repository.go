package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/castarchive/castarchive/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn against a repository bound to a single transaction.
// fn's error rolls the transaction back.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// Users returns the user repository sharing r's connection
func (r *Repository) Users() *UserRepository {
	return &UserRepository{Repository: r}
}

// Casts returns the cast repository sharing r's connection
func (r *Repository) Casts() *CastRepository {
	return &CastRepository{Repository: r}
}

// UserRepository provides author database operations
type UserRepository struct {
	*Repository
}

// InsertIfAbsent stores user unless its fid is already known.
// It reports whether a row was written.
func (r *UserRepository) InsertIfAbsent(ctx context.Context, user *models.UserRecord) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(user)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetByFID retrieves a user by fid
func (r *UserRepository) GetByFID(ctx context.Context, fid uint64) (*models.UserRecord, error) {
	var user models.UserRecord
	if err := r.db.WithContext(ctx).Where("fid = ?", fid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByFIDs retrieves the known users among fids, keyed by fid
func (r *UserRepository) GetByFIDs(ctx context.Context, fids []uint64) (map[uint64]*models.UserRecord, error) {
	out := make(map[uint64]*models.UserRecord, len(fids))
	if len(fids) == 0 {
		return out, nil
	}
	var users []*models.UserRecord
	if err := r.db.WithContext(ctx).Where("fid IN ?", fids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.FID] = u
	}
	return out, nil
}

// List returns every user ordered by fid
func (r *UserRepository) List(ctx context.Context) ([]*models.UserRecord, error) {
	var users []*models.UserRecord
	if err := r.db.WithContext(ctx).Order("fid").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Count returns the number of archived users
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.UserRecord{}).Count(&n).Error
	return n, err
}

// CastRepository provides cast database operations
type CastRepository struct {
	*Repository
}

// InsertIfAbsent stores cast unless its hash is already known.
// It reports whether a row was written.
func (r *CastRepository) InsertIfAbsent(ctx context.Context, cast *models.CastRecord) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cast)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetByHash retrieves a cast by hash
func (r *CastRepository) GetByHash(ctx context.Context, hash string) (*models.CastRecord, error) {
	var cast models.CastRecord
	if err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&cast).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cast, nil
}

// GetByHashes retrieves the archived casts among hashes
func (r *CastRepository) GetByHashes(ctx context.Context, hashes []string) ([]*models.CastRecord, error) {
	var casts []*models.CastRecord
	if len(hashes) == 0 {
		return casts, nil
	}
	if err := r.db.WithContext(ctx).Where("hash IN ?", hashes).Find(&casts).Error; err != nil {
		return nil, err
	}
	return casts, nil
}

// ListByAuthor returns fid's casts, newest first. limit <= 0 returns all of them.
func (r *CastRepository) ListByAuthor(ctx context.Context, fid uint64, limit int) ([]*models.CastRecord, error) {
	var casts []*models.CastRecord
	query := r.db.WithContext(ctx).Where("fid = ?", fid).Order("timestamp DESC, hash")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&casts).Error; err != nil {
		return nil, err
	}
	return casts, nil
}

// CountReplies returns how many archived casts answer (fid, hash)
func (r *CastRepository) CountReplies(ctx context.Context, fid uint64, hash string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.CastRecord{}).
		Where("parent_hash = ? AND parent_fid = ?", hash, fid).
		Count(&n).Error
	return n, err
}

// Each calls fn with every archived cast, batchSize rows at a time, in hash order
func (r *CastRepository) Each(ctx context.Context, batchSize int, fn func([]*models.CastRecord) error) error {
	var batch []*models.CastRecord
	res := r.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	return res.Error
}

// Count returns the number of archived casts
func (r *CastRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.CastRecord{}).Count(&n).Error
	return n, err
}
