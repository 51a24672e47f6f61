package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Status is a record's review state.
type Status string

const (
	StatusIncomplete Status = "incomplete"
	StatusComplete   Status = "complete"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusIncomplete, StatusComplete:
		return Status(s), nil
	default:
		return "", fmt.Errorf("store: unknown status %q (want %q or %q)", s, StatusIncomplete, StatusComplete)
	}
}

// Record is a stored clinical record. Clinical fields never change after
// Save; only Status moves from incomplete to complete.
type Record struct {
	ID          uint      `gorm:"primaryKey"`
	SequenceID  string    `gorm:"column:consecutivo;uniqueIndex;not null"`
	Owner       string    `gorm:"column:usuario;index;not null"`
	PatientName string    `gorm:"column:paciente"`
	Age         string    `gorm:"column:edad"`
	Reason      string    `gorm:"column:motivo"`
	Diagnosis   string    `gorm:"column:diagnostico"`
	Treatment   string    `gorm:"column:tratamiento"`
	CreatedAt   time.Time `gorm:"column:fecha_creacion;not null"`
	Status      Status    `gorm:"column:estado;index;not null"`
}

// TableName implements gorm's tabler interface.
func (Record) TableName() string { return "historias" }

// NewRecord holds the caller-supplied fields of a record to save.
type NewRecord struct {
	Owner       string
	PatientName string
	Age         string
	Reason      string
	Diagnosis   string
	Treatment   string
}

// maxSaveAttempts bounds sequence id reservation retries after a collision
// with another writer.
const maxSaveAttempts = 5

// FormatSequenceID returns the HC-<year>-<nnnn> identifier for the n-th record.
func FormatSequenceID(year, n int) string {
	return fmt.Sprintf("HC-%d-%04d", year, n)
}

// NextSequenceID previews the id the next Save would assign. It does not
// reserve anything; Save assigns the binding id.
func (s *Store) NextSequenceID(ctx context.Context) (string, error) {
	return s.nextSequenceID(s.db.WithContext(ctx))
}

func (s *Store) nextSequenceID(db *gorm.DB) (string, error) {
	var count int64
	if err := db.Model(&Record{}).Count(&count).Error; err != nil {
		return "", fmt.Errorf("%w: counting records: %w", ErrStorage, err)
	}
	return FormatSequenceID(s.now().Year(), int(count)+1), nil
}

// Save appends a record with status incomplete. The sequence id is counted
// and inserted in one transaction; a collision with a concurrent writer is
// retried with a fresh count.
func (s *Store) Save(ctx context.Context, in NewRecord) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		rec, err := s.saveOnce(ctx, in)
		if err == nil {
			slog.Debug("store: record saved", "id", rec.SequenceID, "owner", rec.Owner)
			return rec, nil
		}
		if !isDuplicate(err) {
			return Record{}, err
		}
		slog.Warn("store: sequence id collision, retrying", "attempt", attempt, "err", err)
	}
	return Record{}, fmt.Errorf("%w: no free sequence id after %d attempts", ErrStorage, maxSaveAttempts)
}

func (s *Store) saveOnce(ctx context.Context, in NewRecord) (Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := accountExists(tx, in.Owner)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownOwner, in.Owner)
		}

		id, err := s.nextSequenceID(tx)
		if err != nil {
			return err
		}
		rec = Record{
			SequenceID:  id,
			Owner:       in.Owner,
			PatientName: in.PatientName,
			Age:         in.Age,
			Reason:      in.Reason,
			Diagnosis:   in.Diagnosis,
			Treatment:   in.Treatment,
			CreatedAt:   s.now(),
			Status:      StatusIncomplete,
		}
		return tx.Create(&rec).Error
	})
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, ErrUnknownOwner) || errors.Is(err, ErrStorage) || isDuplicate(err) {
		return Record{}, err
	}
	return Record{}, fmt.Errorf("%w: saving record: %w", ErrStorage, err)
}

// ListByStatus returns owner's records with the given status, newest first.
func (s *Store) ListByStatus(ctx context.Context, owner string, status Status) ([]Record, error) {
	var recs []Record
	err := s.db.WithContext(ctx).
		Where("usuario = ? AND estado = ?", owner, status).
		Order("fecha_creacion DESC").Order("id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: listing records: %w", ErrStorage, err)
	}
	return recs, nil
}

// Get returns owner's record with the given sequence id.
func (s *Store) Get(ctx context.Context, owner, sequenceID string) (Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).
		Where("usuario = ? AND consecutivo = ?", owner, sequenceID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, sequenceID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: reading record: %w", ErrStorage, err)
	}
	return rec, nil
}

// MarkComplete moves owner's record to StatusComplete. Completing an
// already complete record is a no-op.
func (s *Store) MarkComplete(ctx context.Context, owner, sequenceID string) error {
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("usuario = ? AND consecutivo = ?", owner, sequenceID).
		Update("estado", StatusComplete)
	if res.Error != nil {
		return fmt.Errorf("%w: completing record: %w", ErrStorage, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, sequenceID)
	}
	return nil
}
