// Package gormstore keeps meetings, participants and the meeting log in a
// relational database through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	log.Warn().Str("module", "gormstore").Msgf(format, args...)
}

// Open connects with the named driver ("postgres" or "sqlite") and migrates
// the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "gormstore").Str("driver", driver).Msg("database ready")
	return s, nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&meetingModel{}, &participantModel{}, &meetingLogModel{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateRoom(ctx context.Context, room *domain.Room) error {
	m := meetingFromDomain(room)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}

func (s *Store) FindRoom(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	var m meetingModel
	err := s.db.WithContext(ctx).Where("code = ?", string(code)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) CountActiveParticipants(ctx context.Context, room domain.RoomID) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&participantModel{}).
		Where("meeting_id = ? AND is_active = ?", string(room), true).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return int(n), nil
}

func (s *Store) ListActiveParticipants(ctx context.Context, room domain.RoomID) ([]domain.Participant, error) {
	var rows []participantModel
	err := s.db.WithContext(ctx).
		Where("meeting_id = ? AND is_active = ?", string(room), true).
		Order("joined_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	out := make([]domain.Participant, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) CreateParticipant(ctx context.Context, p *domain.Participant) error {
	m := participantFromDomain(p)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, id domain.ParticipantID) (*domain.Participant, error) {
	var m participantModel
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	p := m.toDomain()
	return &p, nil
}

func (s *Store) FindParticipant(ctx context.Context, room domain.RoomID, client domain.ClientID) (*domain.Participant, error) {
	var m participantModel
	err := s.db.WithContext(ctx).
		Where("meeting_id = ? AND client_id = ? AND is_active = ?", string(room), string(client), true).
		Order("joined_at desc").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find participant: %w", err)
	}
	p := m.toDomain()
	return &p, nil
}

func (s *Store) UpdateParticipant(ctx context.Context, p *domain.Participant) error {
	m := participantFromDomain(p)
	res := s.db.WithContext(ctx).Model(&participantModel{ID: m.ID}).Select("*").Omit("id").Updates(&m)
	if res.Error != nil {
		return fmt.Errorf("update participant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

func (s *Store) AppendAuditEvent(ctx context.Context, ev *domain.AuditEvent) error {
	m, err := meetingLogFromDomain(ev)
	if err != nil {
		return fmt.Errorf("encode meeting log: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("append meeting log: %w", err)
	}
	return nil
}

// AuditEvents lists a meeting's log in time order.
func (s *Store) AuditEvents(ctx context.Context, room domain.RoomID) ([]domain.AuditEvent, error) {
	var rows []meetingLogModel
	err := s.db.WithContext(ctx).Where("meeting_id = ?", string(room)).Order("created_at asc").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list meeting log: %w", err)
	}
	out := make([]domain.AuditEvent, len(rows))
	for i, r := range rows {
		ev, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("decode meeting log %s: %w", r.ID, err)
		}
		out[i] = ev
	}
	return out, nil
}
