// Package clyrics keeps user-authored lyrics in SQLite and serves them to
// the race as the highest-trust source.
package clyrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lyrics-engine/pkg/lyric"
)

// DurationTolerance 歌曲时长允许的误差（秒）
const DurationTolerance = 2.0

// ErrNotFound 没有匹配的自定义歌词
var ErrNotFound = errors.New("custom lyrics not found")

// Record 一条自定义歌词
type Record struct {
	ID       uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	VideoID  string       `gorm:"index:idx_video_id" json:"videoId,omitempty"`
	Song     string       `gorm:"index:idx_song_meta,priority:1" json:"song"`
	Artist   string       `gorm:"index:idx_song_meta,priority:2" json:"artist"`
	Album    string       `json:"album,omitempty"`
	Duration float64      `json:"duration"`
	Modified int64        `gorm:"index" json:"modified"` // epoch ms
	Lyrics   []lyric.Line `gorm:"serializer:json" json:"lyrics"`
}

// TableName 自定义表名
func (Record) TableName() string {
	return "custom_lyrics"
}

// Store SQLite 自定义歌词库
type Store struct {
	db *gorm.DB
}

// Open 打开（必要时创建）数据库
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		if sqlDB, e := db.DB(); e == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close 关闭数据库
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

// Save inserts rec, or updates it when rec.ID is set. Modified is stamped
// when left zero.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec.Modified == 0 {
		rec.Modified = time.Now().UnixMilli()
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("saving custom lyrics: %w", err)
	}
	return nil
}

// Get 按 ID 获取
func (s *Store) Get(ctx context.Context, id uint) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying custom lyrics %d: %w", id, err)
	}
	return &rec, nil
}

// List returns every record, newest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var recs []Record
	if err := s.db.WithContext(ctx).Order("modified DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing custom lyrics: %w", err)
	}
	return recs, nil
}

// Delete 按 ID 删除
func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Record{}, id)
	if res.Error != nil {
		return fmt.Errorf("deleting custom lyrics %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Match finds the record for track: an exact video id first, then song and
// artist (and album when the track has one) within DurationTolerance.
func (s *Store) Match(ctx context.Context, track lyric.Track) (*Record, error) {
	db := s.db.WithContext(ctx)
	var rec Record

	if track.VideoID != "" {
		err := db.Where("video_id = ?", track.VideoID).Order("modified DESC").First(&rec).Error
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("querying by video id: %w", err)
		}
	}

	q := db.Where("song = ? AND artist = ?", track.Song, track.Artist).
		Where("duration BETWEEN ? AND ?", track.Duration-DurationTolerance, track.Duration+DurationTolerance)
	if track.Album != "" {
		q = q.Where("album = ?", track.Album)
	}
	err := q.Order("modified DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying by metadata: %w", err)
	}
	return &rec, nil
}
