package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"commit-reveal-voting/log"
	"commit-reveal-voting/models"
	"commit-reveal-voting/storage"
)

// ErrDuplicateEntry is returned when a journal entry id or index is reused.
var ErrDuplicateEntry = errors.New("duplicate journal entry")

// Repository is a storage.Store backed by PostgreSQL.
type Repository struct {
	db *gorm.DB
}

var (
	_ storage.Store       = (*Repository)(nil)
	_ storage.ChangeStore = (*Repository)(nil)
)

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return NewRepository(db)
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&roundStateModel{}, &commitmentModel{}, &tallyModel{}, &journalEntryModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}
	return &Repository{db: db}, nil
}

func (r *Repository) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var state roundStateModel
	err := r.db.WithContext(ctx).First(&state, roundStateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load round state")
	}

	var commitments []commitmentModel
	if err := r.db.WithContext(ctx).Find(&commitments).Error; err != nil {
		return nil, errors.Wrap(err, "load commitments")
	}
	var tallies []tallyModel
	if err := r.db.WithContext(ctx).Find(&tallies).Error; err != nil {
		return nil, errors.Wrap(err, "load tallies")
	}

	return snapshotFromRows(state, commitments, tallies), nil
}

// SaveSnapshot replaces the stored round state in one transaction.
func (r *Repository) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveSnapshot(tx, snap)
	})
	if err != nil {
		return errors.Wrap(err, "save snapshot")
	}
	return nil
}

func (r *Repository) AppendEntry(ctx context.Context, entry *models.Entry) error {
	return appendEntry(r.db.WithContext(ctx), entry)
}

// SaveChange replaces the round state and appends entry in one transaction.
func (r *Repository) SaveChange(ctx context.Context, snap *models.Snapshot, entry *models.Entry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveSnapshot(tx, snap); err != nil {
			return errors.Wrap(err, "save snapshot")
		}
		return appendEntry(tx, entry)
	})
	return errors.WithStack(err)
}

func (r *Repository) LoadJournal(ctx context.Context) ([]*models.Entry, error) {
	var rows []journalEntryModel
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load journal")
	}

	entries := make([]*models.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries, nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return errors.WithStack(err)
	}
	return sqlDB.Close()
}

func saveSnapshot(tx *gorm.DB, snap *models.Snapshot) error {
	state, commitments, tallies := snapshotRows(snap)
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&state).Error; err != nil {
		return err
	}

	all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := all.Delete(&commitmentModel{}).Error; err != nil {
		return err
	}
	if err := all.Delete(&tallyModel{}).Error; err != nil {
		return err
	}

	if len(commitments) > 0 {
		if err := tx.Create(&commitments).Error; err != nil {
			return err
		}
	}
	if len(tallies) > 0 {
		if err := tx.Create(&tallies).Error; err != nil {
			return err
		}
	}
	return nil
}

func appendEntry(tx *gorm.DB, entry *models.Entry) error {
	row := entryRow(entry)
	if err := tx.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			log.Warn("Journal entry already stored", zap.String("id", entry.ID), zap.Uint64("index", entry.Index))
			return errors.Wrapf(ErrDuplicateEntry, "entry %d", entry.Index)
		}
		return errors.Wrap(err, "append journal entry")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
