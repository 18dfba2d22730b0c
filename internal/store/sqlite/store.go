// Package sqlite persists order events through gorm. The store is optional;
// a nil *Store is a no-op so the executor never branches on persistence.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scalper/internal/store/model"
	"scalper/internal/venue"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.OrderEventModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordOrder appends one submission attempt. result carries the venue reply;
// a zero result with rejected=true records a transport-level failure.
func (s *Store) RecordOrder(ctx context.Context, cycleID string, op model.OrderOp, req venue.OrderRequest, result venue.OrderResult) error {
	if s == nil || s.db == nil {
		return nil
	}
	raw, _ := json.Marshal(map[string]any{"request": req, "result": result})
	ev := model.OrderEventModel{
		CycleID:   cycleID,
		Op:        op,
		Symbol:    req.Symbol,
		Direction: string(req.Direction),
		Volume:    req.Volume,
		Price:     req.Price,
		Ticket:    result.Order,
		Retcode:   result.Retcode,
		Comment:   result.Comment,
		Raw:       datatypes.JSON(raw),
		CreatedAt: time.Now().UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&ev).Error
}

// EventsForCycle returns the attempts recorded for one cycle, oldest first.
func (s *Store) EventsForCycle(ctx context.Context, cycleID string) ([]model.OrderEventModel, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var out []model.OrderEventModel
	err := s.db.WithContext(ctx).
		Where("cycle_id = ?", cycleID).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// RecentEvents returns the latest n attempts, newest first.
func (s *Store) RecentEvents(ctx context.Context, n int) ([]model.OrderEventModel, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 50
	}
	var out []model.OrderEventModel
	err := s.db.WithContext(ctx).Order("id desc").Limit(n).Find(&out).Error
	return out, err
}
