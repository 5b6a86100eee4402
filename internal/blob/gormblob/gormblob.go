// Package gormblob stores blobs in a key/value table via GORM.
// SQLite (glebarez driver) is the default backend; a MySQL dialector
// works the same way for shared deployments.
package gormblob

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type record struct {
	Key       string    `gorm:"primaryKey;size:64"`
	Value     []byte    `gorm:"size:16777215;not null"`
	UpdatedAt time.Time
}

func (record) TableName() string { return "coach_blobs" }

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var r record
	err := s.db.WithContext(ctx).First(&r, "`key` = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return r.Value, true, nil
}

func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	r := record{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Save(&r).Error
}
