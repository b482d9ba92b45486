package api

import (
	"context"
	"fmt"
	"net/http"

	"studenthub-sync/internal/models"
)

// FetchFeed loads the feed snapshot.
func (c *Client) FetchFeed(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := c.do(ctx, http.MethodGet, "/api/feed", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// LikePost toggles the like and returns the authoritative count.
func (c *Client) LikePost(ctx context.Context, postID string) (models.LikeResult, error) {
	var res models.LikeResult
	path := fmt.Sprintf("/api/feed/%s/like", postID)
	if err := c.do(ctx, http.MethodPost, path, nil, &res); err != nil {
		return models.LikeResult{}, err
	}
	return res, nil
}

// SavePost toggles the saved flag.
func (c *Client) SavePost(ctx context.Context, postID string) (models.SaveResult, error) {
	var res models.SaveResult
	path := fmt.Sprintf("/api/feed/%s/save", postID)
	if err := c.do(ctx, http.MethodPost, path, nil, &res); err != nil {
		return models.SaveResult{}, err
	}
	return res, nil
}

// AddComment creates a comment (top-level or a reply when parentID is
// set) and returns the confirmed comment with its server-assigned ID.
func (c *Client) AddComment(ctx context.Context, postID, content, parentID string) (models.Comment, error) {
	body := struct {
		Content  string `json:"content"`
		ParentID string `json:"parent_id,omitempty"`
	}{Content: content, ParentID: parentID}

	var comment models.Comment
	path := fmt.Sprintf("/api/feed/%s/comment", postID)
	if err := c.do(ctx, http.MethodPost, path, body, &comment); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}
