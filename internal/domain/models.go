// Package domain defines the persistence models for contributions, votes,
// circulation records, users, languages, and challenges. These types are
// mapped with GORM and form the core data layer of the corpus backend.
//
// Relationships are expressed as plain foreign-key fields resolved through
// repository lookups, never as live object pointers, so no entity graph can
// form a reference cycle.
package domain

import "time"

// TaskKind discriminates the two kinds of crowdsourced work.
type TaskKind string

const (
	// TaskTranscription is a candidate transcription of a speech sample.
	TaskTranscription TaskKind = "transcription"
	// TaskTranslation is a candidate translation of a text sample.
	TaskTranslation TaskKind = "translation"
)

// Valid reports whether k is one of the known task kinds.
func (k TaskKind) Valid() bool {
	return k == TaskTranscription || k == TaskTranslation
}

// ContributionState is the promotion-axis lifecycle state of a contribution.
// The flagged axis is independent (see Contribution.Flagged) and can co-occur
// with StateActive.
type ContributionState string

const (
	// StateUnresolved is the initial state: circulating, not yet decided.
	StateUnresolved ContributionState = "unresolved"
	// StateActive marks accepted canonical data. Terminal on the promotion axis.
	StateActive ContributionState = "active"
	// StateRejected marks rejected data, retained for audit. Terminal.
	StateRejected ContributionState = "rejected"
)

// VoteKind is the direction of a vote.
type VoteKind string

const (
	VoteUp   VoteKind = "upvote"
	VoteDown VoteKind = "downvote"
)

// Valid reports whether k is one of the known vote kinds.
func (k VoteKind) Valid() bool { return k == VoteUp || k == VoteDown }

// Contribution is a single candidate sample submitted by one contributor.
// Exactly one sample reference is carried, expressed by the (TaskKind,
// SampleID) pair rather than two nullable foreign keys, so "both set" and
// "neither set" are unrepresentable by construction (see Payload).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ContributorID: author of the candidate; indexed for self-vote exclusion.
//   - TaskKind / SampleID: tagged reference to the transcription or
//     translation sample being worked on.
//   - Text: the raw submitted payload text.
//   - NormalizedText: canonical form used for duplicate merging; unique
//     together with (task_kind, sample_id) so concurrent identical
//     submissions race on the database constraint, not on application state.
//   - Frequency: number of identical submissions merged into this row.
//   - Upvotes / Downvotes: vote counters maintained by the voting engine.
//   - Flags: count of flag reports against this row.
//   - State: promotion-axis lifecycle (unresolved → active|rejected).
//   - Flagged: independent flag axis; never cleared automatically.
//
// Rows are never deleted; rejected contributions are retained for audit.
type Contribution struct {
	ID             string            `json:"id"              gorm:"type:char(36);primaryKey"`
	ContributorID  string            `json:"contributor_id"  gorm:"type:varchar(64);not null;index:idx_contributor"`
	TaskKind       TaskKind          `json:"task_kind"       gorm:"type:varchar(16);not null;check:task_kind IN ('transcription','translation');uniqueIndex:ux_contrib_payload,priority:1"`
	SampleID       string            `json:"sample_id"       gorm:"type:char(36);not null;index;uniqueIndex:ux_contrib_payload,priority:2"`
	LanguageID     string            `json:"language_id"     gorm:"type:char(36);not null;index"`
	Text           string            `json:"text"            gorm:"type:text;not null"`
	NormalizedText string            `json:"-"               gorm:"type:text;not null;uniqueIndex:ux_contrib_payload,priority:3"`
	Frequency      int               `json:"frequency"       gorm:"not null;default:1"`
	Upvotes        int               `json:"upvotes"         gorm:"not null;default:0"`
	Downvotes      int               `json:"downvotes"       gorm:"not null;default:0"`
	Flags          int               `json:"flags"           gorm:"not null;default:0"`
	State          ContributionState `json:"state"           gorm:"type:varchar(16);not null;default:'unresolved';index"`
	Flagged        bool              `json:"flagged"         gorm:"not null;default:false"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// TableName returns the database table name for Contribution.
func (Contribution) TableName() string { return "contributions" }

// IsActive reports whether the contribution was promoted to canonical data.
func (c *Contribution) IsActive() bool { return c.State == StateActive }

// Resolved reports whether the promotion axis reached a terminal state.
func (c *Contribution) Resolved() bool { return c.State != StateUnresolved }

// Vote is one voter's judgement on one contribution. A voter may vote at most
// once per contribution (unique index); rows are immutable once created.
type Vote struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ContributionID string    `json:"contribution_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_vote_contrib_voter,priority:1"`
	VoterID        string    `json:"voter_id"        gorm:"type:varchar(64);not null;index;uniqueIndex:ux_vote_contrib_voter,priority:2"`
	Kind           VoteKind  `json:"kind"            gorm:"type:varchar(16);not null;check:kind IN ('upvote','downvote')"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// FlagReport records one user flagging one contribution as unusable, with a
// free-text reason. The flag threshold counts these rows; one report per
// (contribution, reporter) pair.
type FlagReport struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ContributionID string    `json:"contribution_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_flag_contrib_reporter,priority:1"`
	ReporterID     string    `json:"reporter_id"     gorm:"type:varchar(64);not null;uniqueIndex:ux_flag_contrib_reporter,priority:2"`
	Reason         string    `json:"reason"          gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for FlagReport.
func (FlagReport) TableName() string { return "flag_reports" }

// CirculationRecord is an append-only fact: contribution C was shown to voter
// U at time T. The scheduler creates it atomically with selection; the voting
// engine marks it voted or skipped. One record per (contribution, voter) pair
// (unique index), so a voter is never handed the same unresolved contribution
// twice.
type CirculationRecord struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ContributionID string    `json:"contribution_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_circ_contrib_voter,priority:1"`
	VoterID        string    `json:"voter_id"        gorm:"type:varchar(64);not null;index;uniqueIndex:ux_circ_contrib_voter,priority:2"`
	Voted          bool      `json:"voted"           gorm:"not null;default:false"`
	Skipped        bool      `json:"skipped"         gorm:"not null;default:false"`
	ShownAt        time.Time `json:"shown_at"`
}

// TableName returns the database table name for CirculationRecord.
func (CirculationRecord) TableName() string { return "circulation_records" }

// Pending reports whether the record still awaits a vote or skip.
func (r *CirculationRecord) Pending() bool { return !r.Voted && !r.Skipped }

// User carries the aggregate contributor statistics maintained by the scoring
// engine. Identity (credentials, roles) is resolved by an external provider;
// this row only mirrors the opaque user id it hands us.
type User struct {
	ID                       string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Username                 string    `json:"username"   gorm:"type:varchar(255);not null"`
	Email                    string    `json:"email"      gorm:"type:varchar(255);uniqueIndex"`
	Country                  string    `json:"country"    gorm:"type:varchar(64)"`
	NativeLanguage           string    `json:"native_language" gorm:"type:varchar(64)"`
	ContributionCount        int       `json:"contribution_count"         gorm:"not null;default:0"`
	AcceptedContributions    int       `json:"accepted_contributions"     gorm:"not null;default:0"`
	TotalHoursSpeech         int       `json:"total_hours_speech"         gorm:"not null;default:0"`
	TotalSentencesTranslated int       `json:"total_sentences_translated" gorm:"not null;default:0"`
	TotalTokensProduced      int       `json:"total_tokens_produced"      gorm:"not null;default:0"`
	TotalPoints              int       `json:"total_points"               gorm:"not null;default:0"`
	ReputationScore          int       `json:"reputation_score"           gorm:"not null;default:0;index"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// AcceptanceRate is accepted contributions over total, in [0,1].
// Returns 0 when the user has not contributed yet.
func (u *User) AcceptanceRate() float64 {
	if u.ContributionCount == 0 {
		return 0
	}
	return float64(u.AcceptedContributions) / float64(u.ContributionCount)
}

// Language is a target language for transcription or translation work.
type Language struct {
	ID        string    `json:"id"   gorm:"type:char(36);primaryKey"`
	Code      string    `json:"code" gorm:"type:varchar(8);not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Language.
func (Language) TableName() string { return "languages" }

// UserLanguage is the per (user, language) activity aggregate, created lazily
// on first accepted work and incremented thereafter. Never deleted.
type UserLanguage struct {
	ID                       string    `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID                   string    `json:"user_id"     gorm:"type:varchar(64);not null;index;uniqueIndex:ux_user_language,priority:1"`
	LanguageID               string    `json:"language_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_user_language,priority:2"`
	TotalHoursSpeech         int       `json:"total_hours_speech"         gorm:"not null;default:0"`
	TotalSentencesTranslated int       `json:"total_sentences_translated" gorm:"not null;default:0"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// TableName returns the database table name for UserLanguage.
func (UserLanguage) TableName() string { return "user_languages" }

// TranscriptionSample is an audio sample awaiting a canonical transcription.
type TranscriptionSample struct {
	ID                string    `json:"id"          gorm:"type:char(36);primaryKey"`
	LanguageID        string    `json:"language_id" gorm:"type:char(36);not null;index"`
	AudioURL          string    `json:"audio_url"   gorm:"type:text;not null"`
	DurationSeconds   int       `json:"duration_seconds" gorm:"not null;default:0"`
	TranscriptionText string    `json:"transcription_text" gorm:"type:text"`
	Active            bool      `json:"active"      gorm:"not null;default:false"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName returns the database table name for TranscriptionSample.
func (TranscriptionSample) TableName() string { return "transcription_samples" }

// TranslationSample is a source text awaiting a canonical translation.
type TranslationSample struct {
	ID             string    `json:"id"            gorm:"type:char(36);primaryKey"`
	LanguageID     string    `json:"language_id"   gorm:"type:char(36);not null;index"`
	OriginalText   string    `json:"original_text" gorm:"type:text;not null"`
	TranslatedText string    `json:"translated_text" gorm:"type:text"`
	Validated      bool      `json:"validated"     gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for TranslationSample.
func (TranslationSample) TableName() string { return "translation_samples" }

// ChallengeType selects the point-weighting profile of a challenge.
type ChallengeType string

const (
	ChallengeTranscription ChallengeType = "transcription_challenge"
	ChallengeTranslation   ChallengeType = "translation_challenge"
	ChallengeCorrection    ChallengeType = "correction_marathon"
)

// Valid reports whether t is one of the known challenge types.
func (t ChallengeType) Valid() bool {
	switch t {
	case ChallengeTranscription, ChallengeTranslation, ChallengeCorrection:
		return true
	}
	return false
}

// Challenge is a time-boxed competitive period in which contributions earn
// challenge-specific points.
type Challenge struct {
	ID                      string        `json:"id"          gorm:"type:char(36);primaryKey"`
	Name                    string        `json:"name"        gorm:"type:varchar(255);not null"`
	Description             string        `json:"description" gorm:"type:text"`
	Type                    ChallengeType `json:"type"        gorm:"type:varchar(32);not null"`
	StartDate               time.Time     `json:"start_date"`
	EndDate                 time.Time     `json:"end_date"`
	IsActive                bool          `json:"is_active"   gorm:"not null;default:true;index"`
	TargetContributionCount int           `json:"target_contribution_count" gorm:"not null;default:0"`
	ParticipantCount        int           `json:"participant_count"         gorm:"not null;default:0"`
	ContributionCount       int           `json:"contribution_count"        gorm:"not null;default:0"`
	CreatedAt               time.Time     `json:"created_at"`
	UpdatedAt               time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Challenge.
func (Challenge) TableName() string { return "challenges" }

// ChallengeParticipation is the per (challenge, user) aggregate. Registration
// is idempotent (unique index); the scoring engine is the only writer of the
// counters and of TotalPoints, which leaderboards read back verbatim.
type ChallengeParticipation struct {
	ID                       string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ChallengeID              string    `json:"challenge_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_challenge_user,priority:1"`
	UserID                   string    `json:"user_id"      gorm:"type:varchar(64);not null;index;uniqueIndex:ux_challenge_user,priority:2"`
	TotalHoursSpeech         int       `json:"total_hours_speech"         gorm:"not null;default:0"`
	TotalSentencesTranslated int       `json:"total_sentences_translated" gorm:"not null;default:0"`
	TotalTokensProduced      int       `json:"total_tokens_produced"      gorm:"not null;default:0"`
	AcceptanceRate           float64   `json:"acceptance_rate"            gorm:"not null;default:0"`
	TotalPoints              int       `json:"total_points"               gorm:"not null;default:0;index"`
	Finalized                bool      `json:"finalized"                  gorm:"not null;default:false"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChallengeParticipation.
func (ChallengeParticipation) TableName() string { return "challenge_participations" }
