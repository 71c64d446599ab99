package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/glebarez/sqlite"
	json "github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nemanja-m/mrstep/internal/step/core"
)

// outputRecord is the row layout of the executable_outputs table.
type outputRecord struct {
	ID        string `gorm:"primaryKey;size:128"`
	State     string `gorm:"size:16;not null"`
	Info      string `gorm:"type:text;not null"`
	Text      string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (outputRecord) TableName() string {
	return "executable_outputs"
}

// SQLOutputStore keeps executable outputs in a SQLite database so that a
// restarted process sees what the previous one recorded.
type SQLOutputStore struct {
	db *gorm.DB
}

// OpenSQLOutputStore opens (and migrates) the SQLite database at dsn.
func OpenSQLOutputStore(dsn string) (*SQLOutputStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open output store: %w", err)
	}
	return NewSQLOutputStore(db)
}

func NewSQLOutputStore(db *gorm.DB) (*SQLOutputStore, error) {
	if err := db.AutoMigrate(&outputRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate output store: %w", err)
	}
	// SQLite allows a single writer; one connection keeps read-modify-write
	// transactions from failing with SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return &SQLOutputStore{db: db}, nil
}

func (s *SQLOutputStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLOutputStore) GetOutput(ctx context.Context, id string) (*core.Output, error) {
	var record outputRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", core.ErrOutputNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load output %s: %w", id, err)
	}
	return record.toOutput()
}

func (s *SQLOutputStore) UpdateOutput(
	ctx context.Context,
	id string,
	state core.ExecutableState,
	info map[string]string,
	text string,
) error {
	if state != "" && !state.Valid() {
		return fmt.Errorf("invalid executable state: %s", state)
	}
	return s.merge(ctx, id, func(output *core.Output) {
		if state != "" {
			output.State = state
		}
		maps.Copy(output.Info, info)
		if text != "" {
			output.Text = text
		}
	})
}

func (s *SQLOutputStore) AddInfo(ctx context.Context, id string, info map[string]string) error {
	return s.merge(ctx, id, func(output *core.Output) {
		maps.Copy(output.Info, info)
	})
}

func (s *SQLOutputStore) merge(ctx context.Context, id string, apply func(*core.Output)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record outputRecord
		created := false
		err := tx.Where("id = ?", id).Take(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = outputRecord{ID: id, State: string(core.StateReady), Info: "{}"}
			created = true
		case err != nil:
			return fmt.Errorf("failed to load output %s: %w", id, err)
		}

		output, err := record.toOutput()
		if err != nil {
			return err
		}
		apply(output)

		encoded, err := json.Marshal(output.Info)
		if err != nil {
			return fmt.Errorf("failed to encode info of %s: %w", id, err)
		}
		record.State = string(output.State)
		record.Info = string(encoded)
		record.Text = output.Text
		record.UpdatedAt = time.Now().UTC()

		if created {
			return tx.Create(&record).Error
		}
		return tx.Save(&record).Error
	})
}

func (r *outputRecord) toOutput() (*core.Output, error) {
	info := make(map[string]string)
	if r.Info != "" {
		if err := json.Unmarshal([]byte(r.Info), &info); err != nil {
			return nil, fmt.Errorf("failed to decode info of %s: %w", r.ID, err)
		}
	}
	return &core.Output{
		ID:        r.ID,
		State:     core.ExecutableState(r.State),
		Info:      info,
		Text:      r.Text,
		UpdatedAt: r.UpdatedAt,
	}, nil
}
