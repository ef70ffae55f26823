// Package services defines the business logic of the contribution engine:
// the ledger, circulation scheduler, voting engine, scoring engine,
// challenges, and leaderboards. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Ledger-related errors.
var (
	// ErrContributionNotFound indicates that the requested contribution does
	// not exist.
	ErrContributionNotFound = errors.New("contribution not found")

	// ErrLanguageNotFound indicates that the referenced language does not
	// exist.
	ErrLanguageNotFound = errors.New("language not found")

	// ErrSampleNotFound indicates that the payload references a transcription
	// or translation sample that does not exist.
	ErrSampleNotFound = errors.New("sample not found")
)

// Voting-related errors.
var (
	// ErrNotCirculated is returned when a vote arrives for a (voter,
	// contribution) pair that has no pending circulation record. Blind voting
	// on contributions never shown to the voter is rejected.
	ErrNotCirculated = errors.New("contribution was not circulated to this voter")

	// ErrDuplicateVote is returned when a voter attempts to vote twice on the
	// same contribution.
	ErrDuplicateVote = errors.New("vote already exists")

	// ErrDuplicateFlag is returned when a user flags the same contribution a
	// second time.
	ErrDuplicateFlag = errors.New("flag report already exists")

	// ErrAlreadyResolved is returned when a vote or skip targets a
	// contribution whose promotion axis already reached a terminal state.
	ErrAlreadyResolved = errors.New("contribution already resolved")

	// ErrInvalidVote is returned when the vote kind is neither upvote nor
	// downvote.
	ErrInvalidVote = errors.New("vote kind must be upvote or downvote")

	// ErrEmptyReason is returned when a flag report carries no reason.
	ErrEmptyReason = errors.New("flag reason is empty")
)

// Challenge-related errors.
var (
	// ErrChallengeNotFound indicates that the requested challenge does not
	// exist.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrChallengeClosed is returned when registration targets a challenge
	// that is inactive or outside its time window.
	ErrChallengeClosed = errors.New("challenge is not open")

	// ErrInvalidChallenge is returned when challenge creation input is
	// structurally invalid (unknown type, end before start, blank name).
	ErrInvalidChallenge = errors.New("invalid challenge definition")
)

// User-related errors.
var (
	// ErrUserNotFound indicates that the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateLanguage is returned when a language code is already
	// registered.
	ErrDuplicateLanguage = errors.New("language already exists")

	// ErrInvalidLanguage is returned when language creation input is blank.
	ErrInvalidLanguage = errors.New("language code and name are required")
)
