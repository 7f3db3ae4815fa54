package discussion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DiscussionRecord is the relational shape of a discussion state.
type DiscussionRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	SessionID   string `gorm:"index;size:128"`
	Task        string `gorm:"type:text"`
	AgentTypes  string `gorm:"size:512"` // JSON-encoded list
	Mode        string `gorm:"size:32"`
	Rounds      int
	Status      string `gorm:"index;size:16"`
	Error       string `gorm:"type:text"`
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	EventCount  int
}

func (DiscussionRecord) TableName() string { return "discussions" }

// EventRecord is the relational shape of a discussion event.
type EventRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	DiscussionID string `gorm:"index:idx_events_discussion_seq;size:64"`
	Sequence     int    `gorm:"index:idx_events_discussion_seq"`
	Type         string `gorm:"size:32"`
	Timestamp    time.Time
	Data         string `gorm:"type:text"` // JSON-encoded payload
}

func (EventRecord) TableName() string { return "discussion_events" }

// GormStore archives discussions in a relational database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm handle. Call AutoMigrate or run the migrate
// subcommand before first use.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the discussion tables.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&DiscussionRecord{}, &EventRecord{})
}

func (s *GormStore) Save(ctx context.Context, state *State) error {
	agentTypes, err := json.Marshal(state.AgentTypes)
	if err != nil {
		return fmt.Errorf("marshal agent types: %w", err)
	}
	record := DiscussionRecord{
		ID:          state.DiscussionID,
		SessionID:   state.SessionID,
		Task:        state.Task,
		AgentTypes:  string(agentTypes),
		Mode:        state.Mode,
		Rounds:      state.Rounds,
		Status:      string(state.Status),
		Error:       state.Error,
		CreatedAt:   state.CreatedAt,
		StartedAt:   state.StartedAt,
		CompletedAt: state.CompletedAt,
		EventCount:  state.EventCount,
	}
	return s.db.WithContext(ctx).Save(&record).Error
}

func (s *GormStore) Get(ctx context.Context, discussionID string) (*State, error) {
	var record DiscussionRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", discussionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(discussionID)
	}
	if err != nil {
		return nil, err
	}
	return recordToState(&record)
}

func (s *GormStore) List(ctx context.Context) ([]*State, error) {
	var records []DiscussionRecord
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]*State, 0, len(records))
	for i := range records {
		state, err := recordToState(&records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, nil
}

func (s *GormStore) Delete(ctx context.Context, discussionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&DiscussionRecord{}, "id = ?", discussionID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return notFound(discussionID)
		}
		return tx.Delete(&EventRecord{}, "discussion_id = ?", discussionID).Error
	})
}

func (s *GormStore) AppendEvents(ctx context.Context, discussionID string, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]EventRecord, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		records = append(records, EventRecord{
			DiscussionID: discussionID,
			Sequence:     e.Sequence,
			Type:         string(e.Type),
			Timestamp:    e.Timestamp,
			Data:         string(data),
		})
	}
	return s.db.WithContext(ctx).Create(&records).Error
}

func (s *GormStore) ClearEvents(ctx context.Context, discussionID string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&DiscussionRecord{}).
		Where("id = ?", discussionID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFound(discussionID)
	}
	return s.db.WithContext(ctx).
		Where("discussion_id = ?", discussionID).
		Delete(&EventRecord{}).Error
}

func (s *GormStore) Events(ctx context.Context, discussionID string) ([]Event, error) {
	var records []EventRecord
	err := s.db.WithContext(ctx).
		Where("discussion_id = ?", discussionID).
		Order("sequence asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(records))
	for _, r := range records {
		var data map[string]any
		if r.Data != "" {
			if err := json.Unmarshal([]byte(r.Data), &data); err != nil {
				return nil, fmt.Errorf("unmarshal event data: %w", err)
			}
		}
		out = append(out, Event{
			Sequence:     r.Sequence,
			Type:         EventType(r.Type),
			DiscussionID: r.DiscussionID,
			Timestamp:    r.Timestamp,
			Data:         data,
		})
	}
	return out, nil
}

func recordToState(r *DiscussionRecord) (*State, error) {
	var agentTypes []string
	if r.AgentTypes != "" {
		if err := json.Unmarshal([]byte(r.AgentTypes), &agentTypes); err != nil {
			return nil, fmt.Errorf("unmarshal agent types: %w", err)
		}
	}
	return &State{
		DiscussionID: r.ID,
		SessionID:    r.SessionID,
		Task:         r.Task,
		AgentTypes:   agentTypes,
		Mode:         r.Mode,
		Rounds:       r.Rounds,
		Status:       Status(r.Status),
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		Error:        r.Error,
		EventCount:   r.EventCount,
	}, nil
}
