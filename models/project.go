package models

import (
	"time"
)

// Project types — the closed set the orchestrator can dispatch on.
const (
	ProjectTypeVideo = "video"
	ProjectTypePhoto = "photo"
	ProjectTypeAudio = "audio"
	ProjectTypeMixed = "mixed"
)

// Project lifecycle states: collecting → processing → completed, with
// processing falling back to collecting when composition fails.
const (
	ProjectStatusCollecting = "collecting"
	ProjectStatusProcessing = "processing"
	ProjectStatusCompleted  = "completed"
)

// Media kinds carried by a contribution.
const (
	MediaKindVideo = "video"
	MediaKindPhoto = "photo"
	MediaKindAudio = "audio"
)

// ValidProjectType reports whether t belongs to the declared type set.
func ValidProjectType(t string) bool {
	switch t {
	case ProjectTypeVideo, ProjectTypePhoto, ProjectTypeAudio, ProjectTypeMixed:
		return true
	}
	return false
}

// Project is a shared creative goal collecting one contribution per user
// until it is sealed into a single composed artifact.
//
// ParticipantsCount is a stored counter maintained by a conditional atomic
// increment during admission; it must always equal the number of accepted
// contributions.
type Project struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	CreatorID   string `json:"creator_id" gorm:"index;not null"`
	ChallengeID string `json:"challenge_id" gorm:"index"`
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description"`
	Type        string `json:"type" gorm:"type:varchar(16);not null"`
	Status      string `json:"status" gorm:"type:varchar(16);default:'collecting';index"`

	ParticipantsCount int        `json:"participants_count" gorm:"default:0"`
	MaxParticipants   *int       `json:"max_participants,omitempty"`
	Deadline          *time.Time `json:"deadline,omitempty" gorm:"index"`

	// Set only when the project reaches completed.
	FinalMediaURL string `json:"final_media_url,omitempty"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`

	// Engagement counters, best-effort (non-transactional with reads).
	ViewsCount int64 `json:"views_count" gorm:"default:0"`
	LikesCount int64 `json:"likes_count" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Contributions []Contribution `json:"contributions,omitempty" gorm:"foreignKey:ProjectID"`
}

// Contribution is one user's accepted submission against a project, tied to
// the challenge it answers. The (user, challenge) pair is unique at the
// store level; the index closes the check-then-insert race window.
//
// Immutable after admission except IsFeatured (set by the orchestrator
// during composition) and LikesCount (mirrored external signal).
type Contribution struct {
	ID              string `json:"id" gorm:"primaryKey;type:uuid"`
	UserID          string `json:"user_id" gorm:"not null;uniqueIndex:idx_contributions_user_challenge"`
	ChallengeID     string `json:"challenge_id" gorm:"not null;uniqueIndex:idx_contributions_user_challenge"`
	ProjectID       string `json:"project_id" gorm:"index;not null"`
	MediaURL        string `json:"media_url" gorm:"not null"`
	MediaKind       string `json:"media_kind" gorm:"type:varchar(16);not null"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`

	IsFeatured bool  `json:"is_featured" gorm:"default:false"`
	LikesCount int64 `json:"likes_count" gorm:"default:0"`

	// Reward dedupe gate: flipped exactly once by the reward engine so a
	// retried admission cannot double-credit the contributor.
	RewardGranted bool `json:"-" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Challenge mirrors the originating challenge a contribution answers. Only
// the fields this service reads are kept; CompletionsCount is maintained
// here alongside project admission.
type Challenge struct {
	ID               string    `json:"id" gorm:"primaryKey;type:uuid"`
	Title            string    `json:"title"`
	Type             string    `json:"type" gorm:"type:varchar(16)"`
	CompletionsCount int64     `json:"completions_count" gorm:"default:0"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// ProjectLike records one like per (project, user).
type ProjectLike struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectID string    `json:"project_id" gorm:"not null;uniqueIndex:idx_project_likes_project_user"`
	UserID    string    `json:"user_id" gorm:"not null;uniqueIndex:idx_project_likes_project_user"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
