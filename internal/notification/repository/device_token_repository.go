package repository

import (
	"context"
	"sync"
	"time"

	"crono-backend/internal/notification/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository stores push registrations per owner
type DeviceTokenRepository interface {
	SaveToken(ctx context.Context, ownerID, token, deviceInfo string) error
	TokensByOwner(ctx context.Context, ownerID string) ([]domain.DeviceToken, error)
	DeleteToken(ctx context.Context, token string) error
	DeleteTokensByOwner(ctx context.Context, ownerID string) error
}

type gormDeviceTokenRepository struct {
	db *gorm.DB
}

// NewGormDeviceTokenRepository creates a DeviceTokenRepository on the device_tokens table
func NewGormDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &gormDeviceTokenRepository{db: db}
}

// Migrate creates or updates the device_tokens table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.DeviceToken{})
}

// SaveToken upserts on the token column, so a device that changes owner is reassigned
func (r *gormDeviceTokenRepository) SaveToken(ctx context.Context, ownerID, token, deviceInfo string) error {
	now := time.Now()
	row := &domain.DeviceToken{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "device_info", "updated_at"}),
	}).Create(row).Error
}

func (r *gormDeviceTokenRepository) TokensByOwner(ctx context.Context, ownerID string) ([]domain.DeviceToken, error) {
	var tokens []domain.DeviceToken
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *gormDeviceTokenRepository) DeleteToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&domain.DeviceToken{}).Error
}

func (r *gormDeviceTokenRepository) DeleteTokensByOwner(ctx context.Context, ownerID string) error {
	return r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&domain.DeviceToken{}).Error
}

// MemoryDeviceTokenRepository keeps tokens in process; used with STORE_DRIVER=memory
type MemoryDeviceTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]domain.DeviceToken // keyed by token
}

func NewMemoryDeviceTokenRepository() *MemoryDeviceTokenRepository {
	return &MemoryDeviceTokenRepository{tokens: make(map[string]domain.DeviceToken)}
}

func (r *MemoryDeviceTokenRepository) SaveToken(ctx context.Context, ownerID, token, deviceInfo string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	row, ok := r.tokens[token]
	if !ok {
		row = domain.DeviceToken{ID: uuid.New().String(), Token: token, CreatedAt: now}
	}
	row.OwnerID = ownerID
	row.DeviceInfo = deviceInfo
	row.UpdatedAt = now
	r.tokens[token] = row
	return nil
}

func (r *MemoryDeviceTokenRepository) TokensByOwner(ctx context.Context, ownerID string) ([]domain.DeviceToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.DeviceToken
	for _, t := range r.tokens {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *MemoryDeviceTokenRepository) DeleteToken(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

func (r *MemoryDeviceTokenRepository) DeleteTokensByOwner(ctx context.Context, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, t := range r.tokens {
		if t.OwnerID == ownerID {
			delete(r.tokens, k)
		}
	}
	return nil
}
