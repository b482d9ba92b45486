package models

import "time"

// Post is a cached feed entry. UserHasLiked and LikesCount move together:
// an optimistic toggle changes both, and a rollback restores both from the
// same snapshot.
type Post struct {
	ID            string     `json:"id"`
	AuthorID      string     `json:"author_id"`
	AuthorName    string     `json:"author_name"`
	Content       string     `json:"content"`
	MediaURL      string     `json:"media_url,omitempty"`
	LikesCount    int        `json:"likes_count"`
	UserHasLiked  bool       `json:"user_has_liked"`
	UserHasSaved  bool       `json:"user_has_saved"`
	CommentsCount int        `json:"comments_count"`
	Comments      []*Comment `json:"comments,omitempty"`
	Version       int64      `json:"-"`
	Pending       bool       `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Comment is a node in a post's reply tree. Nodes are treated as
// immutable once stored; edits replace the path from the root to the
// changed node and leave sibling subtrees shared.
type Comment struct {
	ID         string     `json:"id"`
	ParentID   string     `json:"parent_id,omitempty"`
	AuthorID   string     `json:"author_id"`
	AuthorName string     `json:"author_name"`
	Content    string     `json:"content"`
	Replies    []*Comment `json:"replies,omitempty"`
	Pending    bool       `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}

// LikeResult is the authoritative server state after a like toggle.
type LikeResult struct {
	PostID     string `json:"post_id"`
	Liked      bool   `json:"user_has_liked"`
	LikesCount int    `json:"likes_count"`
}

// SaveResult is the authoritative server state after a save toggle.
type SaveResult struct {
	PostID string `json:"post_id"`
	Saved  bool   `json:"user_has_saved"`
}
