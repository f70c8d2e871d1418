package sql

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pablopunk/doceq/job"
	"github.com/uptrace/bun"
)

// jobModel is the bun row shape backing job.Job. State and Type are
// stored as text rather than relying on bun's native integer binding,
// so the database remains readable with a plain SQL client.
type jobModel struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid"`
	Type      string     `bun:"type,notnull"`
	State     string     `bun:"state,notnull"`
	ProjectID *uuid.UUID `bun:"project_id,type:uuid,nullzero"`
	Payload   string     `bun:"payload,type:text,notnull,default:'{}'"`
	Priority  int        `bun:"priority,notnull,default:0"`

	Attempts      uint32     `bun:"attempts,notnull,default:0"`
	MaxAttempts   uint32     `bun:"max_attempts,notnull,default:1"`
	RunAt         time.Time  `bun:"run_at,notnull"`
	LockedAt      *time.Time `bun:"locked_at,nullzero"`
	LockExpiresAt *time.Time `bun:"lock_expires_at,nullzero"`
	LockedBy      string     `bun:"locked_by,notnull,default:''"`

	DedupeKey    string `bun:"dedupe_key,notnull,default:''"`
	DedupeActive bool   `bun:"dedupe_active,notnull,default:false"`

	CancelRequestedAt *time.Time `bun:"cancel_requested_at,nullzero"`
	CancelledAt       *time.Time `bun:"cancelled_at,nullzero"`

	LastError string `bun:"last_error,notnull,default:''"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (jm *jobModel) toJob() (*job.Job, error) {
	state, err := job.ParseState(jm.State)
	if err != nil {
		return nil, err
	}
	return &job.Job{
		ID:                jm.ID,
		Type:              job.Type(jm.Type),
		State:             state,
		ProjectID:         jm.ProjectID,
		Payload:           json.RawMessage(jm.Payload),
		Priority:          jm.Priority,
		Attempts:          jm.Attempts,
		MaxAttempts:       jm.MaxAttempts,
		RunAt:             jm.RunAt,
		LockedAt:          jm.LockedAt,
		LockExpiresAt:     jm.LockExpiresAt,
		LockedBy:          jm.LockedBy,
		DedupeKey:         jm.DedupeKey,
		DedupeActive:      jm.DedupeActive,
		CancelRequestedAt: jm.CancelRequestedAt,
		CancelledAt:       jm.CancelledAt,
		LastError:         jm.LastError,
		CreatedAt:         jm.CreatedAt,
		UpdatedAt:         jm.UpdatedAt,
	}, nil
}

func fromJob(j *job.Job) *jobModel {
	payload := j.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return &jobModel{
		ID:           j.ID,
		Type:         string(j.Type),
		State:        j.State.String(),
		ProjectID:    j.ProjectID,
		Payload:      string(payload),
		Priority:     j.Priority,
		Attempts:     j.Attempts,
		MaxAttempts:  j.MaxAttempts,
		RunAt:        j.RunAt,
		DedupeKey:    j.DedupeKey,
		DedupeActive: j.DedupeActive,
		LastError:    j.LastError,
	}
}

// settingsModel is the singleton queue_settings row.
type settingsModel struct {
	bun.BaseModel `bun:"table:queue_settings,alias:qs"`

	ID          int  `bun:"id,pk"`
	Paused      bool `bun:"paused,notnull,default:false"`
	Concurrency int  `bun:"concurrency,notnull,default:2"`
}
