package models

// Item is a single news entry mirrored from the upstream feed. The id is
// assigned by the upstream system and doubles as our primary key.
type Item struct {
	ID           int64  `json:"id"`
	By           string `json:"by,omitempty"`
	Time         int64  `json:"time"`
	Title        string `json:"title,omitempty"`
	URL          string `json:"url,omitempty"`
	LikeCount    int64  `json:"likeCount"`
	DislikeCount int64  `json:"dislikeCount"`
}

// User is a registered reader, keyed by their unique email address.
type User struct {
	ID            int64  `json:"id"`
	GivenName     string `json:"givenName,omitempty"`
	FamilyName    string `json:"familyName,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Admin         bool   `json:"admin"`
}

// Profile carries the identity attributes delivered by the identity
// provider, used to provision or refresh a User row.
type Profile struct {
	GivenName     string
	FamilyName    string
	Nickname      string
	Name          string
	Picture       string
	Email         string
	EmailVerified bool
}

// Intent is the direction of a reaction request.
type Intent string

const (
	IntentLike    Intent = "like"
	IntentDislike Intent = "dislike"
)

// Membership tells which reaction set, if any, holds a (user, item) pair.
type Membership int

const (
	MembershipNone Membership = iota
	MembershipLiked
	MembershipDisliked
)

// ReactionOutcome is the wire-stable tag describing what a reaction call did.
type ReactionOutcome string

const (
	OutcomeLiked             ReactionOutcome = "liked"
	OutcomeUnliked           ReactionOutcome = "unliked"
	OutcomeDisliked          ReactionOutcome = "disliked"
	OutcomeUndisliked        ReactionOutcome = "undisliked"
	OutcomeSwitchedToLike    ReactionOutcome = "switched_to_like"
	OutcomeSwitchedToDislike ReactionOutcome = "switched_to_dislike"
)

// SortMode selects the feed ordering.
type SortMode string

const (
	// SortNewest orders by publication time, newest first.
	SortNewest SortMode = "newest"
	// SortPopularity orders by like_count - dislike_count, then newest.
	SortPopularity SortMode = "popularity"
)

// ParseSortMode maps a query parameter to a SortMode. An empty value picks
// the default ordering; anything unknown is rejected.
func ParseSortMode(s string) (SortMode, bool) {
	switch SortMode(s) {
	case "":
		return SortNewest, true
	case SortNewest:
		return SortNewest, true
	case SortPopularity:
		return SortPopularity, true
	}
	return SortNewest, false
}

// Viewer is the per-user slice of a feed response: which items the
// authenticated reader has reacted to, and whether they are an admin.
type Viewer struct {
	LikedIDs    []int64 `json:"likedIds"`
	DislikedIDs []int64 `json:"dislikedIds"`
	Admin       bool    `json:"admin"`
}

// FeedPage is one page of the item feed.
type FeedPage struct {
	Items      []Item   `json:"items"`
	Page       int      `json:"page"`
	TotalPages int      `json:"totalPages"`
	Sort       SortMode `json:"sort"`
	Viewer     *Viewer  `json:"viewer,omitempty"`
}
