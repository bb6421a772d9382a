package authority

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/zombie-proximity/internal/match"
	"github.com/DoyleJ11/zombie-proximity/internal/role"
)

var ErrNoDatabase = errors.New("database url is empty")

// Device is the roster entry for one wearable, as of its last report.
type Device struct {
	ID       uint64
	Role     role.Role
	Status   match.Status
	Health   int32
	Battery  float64
	Comment  string
	LastSeen time.Time
}

// Store keeps the roster of reporting devices.
type Store interface {
	Upsert(ctx context.Context, d Device) error
	List(ctx context.Context) ([]Device, error)
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu      sync.RWMutex
	devices map[uint64]Device
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[uint64]Device)}
}

func (m *MemoryStore) Upsert(_ context.Context, d Device) error {
	m.mu.Lock()
	m.devices[d.ID] = d
	m.mu.Unlock()
	return nil
}

// List returns devices ordered by id.
func (m *MemoryStore) List(_ context.Context) ([]Device, error) {
	m.mu.RLock()
	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	clear(m.devices)
	m.mu.Unlock()
	return nil
}

// deviceRow is the Postgres row. Ids are kept in their hex wire form since
// Postgres has no unsigned 64-bit integer.
type deviceRow struct {
	ID       string `gorm:"primaryKey;size:16"`
	Role     string `gorm:"size:16;not null"`
	Status   string `gorm:"size:16;not null"`
	Health   int32
	Battery  float64
	Comment  string
	LastSeen time.Time `gorm:"index"`
}

func (deviceRow) TableName() string { return "devices" }

type GormStore struct {
	db *gorm.DB
}

// OpenGormStore connects to Postgres and migrates the roster table.
func OpenGormStore(dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, ErrNoDatabase
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open roster database: %w", err)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&deviceRow{}); err != nil {
		return nil, fmt.Errorf("migrate roster: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) Upsert(ctx context.Context, d Device) error {
	row := deviceRow{
		ID:       match.FormatDeviceID(d.ID),
		Role:     d.Role.String(),
		Status:   string(d.Status),
		Health:   d.Health,
		Battery:  d.Battery,
		Comment:  d.Comment,
		LastSeen: d.LastSeen,
	}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (g *GormStore) List(ctx context.Context) ([]Device, error) {
	var rows []deviceRow
	if err := g.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Device, 0, len(rows))
	for _, r := range rows {
		id, err := match.ParseDeviceID(r.ID)
		if err != nil {
			return nil, err
		}
		ro, err := role.Parse(r.Role)
		if err != nil {
			return nil, err
		}
		out = append(out, Device{
			ID:       id,
			Role:     ro,
			Status:   match.Status(r.Status),
			Health:   r.Health,
			Battery:  r.Battery,
			Comment:  r.Comment,
			LastSeen: r.LastSeen,
		})
	}
	return out, nil
}

func (g *GormStore) Clear(ctx context.Context) error {
	return g.db.WithContext(ctx).Where("1 = 1").Delete(&deviceRow{}).Error
}

func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
