//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/TuneTrigger/pkg/models"
)

const DefaultDBFile = "tunetrigger.sqlite3"
const errDBClientNil = "db client is nil"

var ErrNotFound = errors.New("record not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Tune struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Name        string `gorm:"uniqueIndex:idx_tune_name" json:"name"`
	Description string `json:"description"`
	Info        string `json:"info"`
	Type        string `gorm:"index:idx_tune_type" json:"type"`
	DurationMs  int    `json:"duration_ms"`
	CreatedAt   time.Time
}

type Fingerprint struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Hash         uint32 `gorm:"index:idx_hash" json:"hash"`
	TuneID       string `gorm:"type:varchar(36);index:idx_tune" json:"tune_id"`
	AnchorTimeMs uint32 `json:"anchor_time_ms"`
}

// History is a match the listener kept.
type History struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	MatchID    string `gorm:"index:idx_history_match"`
	Name       string
	Info       string
	Type       string
	Confidence float64
	HeardAt    time.Time `gorm:"index:idx_history_time"`
}

// Interest records a listener reaction to a match.
type Interest struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	MatchID  string `gorm:"index:idx_interest_match"`
	Kind     string
	Date     string
	RecordAt time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("TUNETRIGGER_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Tune{}, &Fingerprint{}, &History{}, &Interest{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterTune creates a tune, or returns the ID of the existing tune with
// the same name. created reports which happened.
func (c *DBClient) RegisterTune(meta models.TuneMeta, durationMs int) (id string, created bool, err error) {
	if c == nil || c.DB == nil {
		return "", false, errors.New(errDBClientNil)
	}

	var tune Tune
	err = c.DB.Where("name = ?", meta.Name).First(&tune).Error
	if err == nil {
		return tune.ID, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, fmt.Errorf("querying existing tune: %w", err)
	}

	tune = Tune{
		ID:          uuid.NewString(),
		Name:        meta.Name,
		Description: meta.Description,
		Info:        meta.Info,
		Type:        string(meta.Type),
		DurationMs:  durationMs,
	}
	if err := c.DB.Create(&tune).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			if fetchErr := c.DB.Where("name = ?", meta.Name).First(&tune).Error; fetchErr != nil {
				return "", false, fmt.Errorf("fetching tune after constraint violation: %w", fetchErr)
			}
			return tune.ID, false, nil
		}
		return "", false, fmt.Errorf("creating tune: %w", err)
	}

	return tune.ID, true, nil
}

func (c *DBClient) DeleteTuneByID(tuneID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tune_id = ?", tuneID).Delete(&Fingerprint{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", tuneID).Delete(&Tune{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("tune %s: %w", tuneID, ErrNotFound)
		}
		return nil
	})
}

func (c *DBClient) GetTune(tuneID string) (*models.Tune, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var t Tune
	if err := c.DB.Where("id = ?", tuneID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tune %s: %w", tuneID, ErrNotFound)
		}
		return nil, fmt.Errorf("querying tune: %w", err)
	}
	return t.toModel(), nil
}

func (c *DBClient) ListTunes() ([]models.Tune, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Tune
	if err := c.DB.Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing tunes: %w", err)
	}
	tunes := make([]models.Tune, len(rows))
	for i := range rows {
		tunes[i] = *rows[i].toModel()
	}
	return tunes, nil
}

func (t *Tune) toModel() *models.Tune {
	return &models.Tune{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Info:        t.Info,
		Type:        models.ParseMatchType(t.Type),
		DurationMs:  t.DurationMs,
		CreatedAt:   t.CreatedAt,
	}
}

func (c *DBClient) StoreFingerprints(fp map[uint32][]models.Couple) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}

	entries := make([]Fingerprint, 0, 1024)
	for hash, couples := range fp {
		for _, cou := range couples {
			entries = append(entries, Fingerprint{
				Hash:         hash,
				TuneID:       cou.TuneID,
				AnchorTimeMs: cou.AnchorTimeMs,
			})
			if len(entries) >= 1000 {
				if err := c.DB.CreateInBatches(entries, 500).Error; err != nil {
					return fmt.Errorf("batch insert fingerprints: %w", err)
				}
				entries = entries[:0]
			}
		}
	}
	if len(entries) > 0 {
		if err := c.DB.CreateInBatches(entries, 500).Error; err != nil {
			return fmt.Errorf("batch insert last fingerprints: %w", err)
		}
	}
	return nil
}

func (c *DBClient) GetCouplesByHash(hash uint32) ([]models.Couple, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Fingerprint
	if err := c.DB.Where("hash = ?", hash).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying fingerprints: %w", err)
	}
	out := make([]models.Couple, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Couple{TuneID: r.TuneID, AnchorTimeMs: r.AnchorTimeMs})
	}
	return out, nil
}

// sqlite caps bound parameters per statement
const maxHashesPerQuery = 500

func (c *DBClient) GetCouplesByHashes(hashes []uint32) (map[uint32][]models.Couple, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	result := make(map[uint32][]models.Couple)
	for start := 0; start < len(hashes); start += maxHashesPerQuery {
		end := min(start+maxHashesPerQuery, len(hashes))

		var rows []Fingerprint
		if err := c.DB.Where("hash IN ?", hashes[start:end]).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("batch querying fingerprints: %w", err)
		}
		for _, r := range rows {
			result[r.Hash] = append(result[r.Hash], models.Couple{
				TuneID:       r.TuneID,
				AnchorTimeMs: r.AnchorTimeMs,
			})
		}
	}
	return result, nil
}

func (c *DBClient) FingerprintCount(tuneID string) (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&Fingerprint{}).Where("tune_id = ?", tuneID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return int(count), nil
}

func (c *DBClient) SaveHistory(ctx context.Context, e models.HistoryEntry) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	row := History{
		MatchID:    e.MatchID,
		Name:       e.Name,
		Info:       e.Info,
		Type:       string(e.Type),
		Confidence: e.Confidence,
		HeardAt:    e.HeardAt,
	}
	if err := c.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

// ListHistory returns saved matches, newest first. limit <= 0 means all.
func (c *DBClient) ListHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.WithContext(ctx).Order("heard_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []History
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	out := make([]models.HistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = models.HistoryEntry{
			MatchID:    r.MatchID,
			Name:       r.Name,
			Info:       r.Info,
			Type:       models.ParseMatchType(r.Type),
			Confidence: r.Confidence,
			HeardAt:    r.HeardAt,
		}
	}
	return out, nil
}

func (c *DBClient) RecordInterest(ctx context.Context, in models.Interest) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	row := Interest{
		MatchID:  in.MatchID,
		Kind:     in.Kind,
		Date:     in.Date,
		RecordAt: in.RecordAt,
	}
	if err := c.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("recording interest: %w", err)
	}
	return nil
}

func (c *DBClient) ListInterests(ctx context.Context, matchID string) ([]models.Interest, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.WithContext(ctx).Order("id")
	if matchID != "" {
		q = q.Where("match_id = ?", matchID)
	}
	var rows []Interest
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing interests: %w", err)
	}
	out := make([]models.Interest, len(rows))
	for i, r := range rows {
		out[i] = models.Interest{MatchID: r.MatchID, Kind: r.Kind, Date: r.Date, RecordAt: r.RecordAt}
	}
	return out, nil
}
