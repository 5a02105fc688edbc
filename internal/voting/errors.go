package voting

import "errors"

// Validation outcomes surfaced by the voting core. All are terminal for
// the submission that produced them; nothing is retried internally.
var (
	// ErrInvalidFingerprint means the client fingerprint is not a 64
	// character hex string.
	ErrInvalidFingerprint = errors.New("invalid fingerprint format")

	// ErrCategoryNotFound means the category does not exist.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrCategoryInactive means the category exists but voting is closed.
	ErrCategoryInactive = errors.New("category is not active")

	// ErrDuplicateVote means this voter already has a vote in the
	// category. Also produced when a concurrent duplicate submission
	// loses the insert race at the storage layer.
	ErrDuplicateVote = errors.New("already voted in this category")

	// ErrItemNotInCategory means a chosen item is not configured for the
	// category.
	ErrItemNotInCategory = errors.New("item is not valid for this category")

	// ErrInvalidChoiceShape means the choice payload violates the
	// category mode's count or pairing rules.
	ErrInvalidChoiceShape = errors.New("invalid choice payload for comparison mode")

	// ErrInvalidTierIndex means a tier index falls outside the category's
	// configured tier range.
	ErrInvalidTierIndex = errors.New("invalid tier index")

	// ErrSuspiciousActivity means the abuse oracle flagged this identity.
	// Distinguishable from normal validation failure so the API can
	// answer 429.
	ErrSuspiciousActivity = errors.New("suspicious activity detected")

	// ErrVoteNotFound means the vote targeted by a comment does not
	// exist.
	ErrVoteNotFound = errors.New("vote not found")

	// ErrCommentExists means the targeted vote already has a comment.
	ErrCommentExists = errors.New("comment already exists for this vote")
)
