package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"studenthub-sync/internal/cache"
	"studenthub-sync/internal/models"
	"studenthub-sync/internal/observability"
)

// AddComment inserts a comment optimistically and confirms it with the
// backend. A reply (parentID set) is appended to the parent's replies
// at whatever depth the parent sits; a top-level comment is prepended.
// On success the temp ID is swapped for the server-assigned one in
// place.
func (c *Coordinator) AddComment(ctx context.Context, postID, content, parentID string) error {
	ctx, span := otel.Tracer("studenthub-sync/coordinator").Start(ctx, "mutation.add_comment")
	span.SetAttributes(attribute.String("post.id", postID))
	defer span.End()

	tempID := "tmp-" + uuid.NewString()
	var (
		snap  cache.Snapshot
		found bool
	)
	c.store.Apply(cache.Mutation{
		Name:  "add_comment",
		Local: true,
		Keys:  []cache.Key{cache.PostKey(postID)},
		Fn: func(tx *cache.Tx) {
			post, ok := tx.Post(postID)
			if !ok {
				return
			}
			found = true
			snap = tx.Snapshot(cache.PostKey(postID))

			optimistic := &models.Comment{
				ID:         tempID,
				ParentID:   parentID,
				AuthorID:   c.selfID,
				AuthorName: c.selfName,
				Content:    content,
				Pending:    true,
				CreatedAt:  c.now(),
			}

			if parentID != "" {
				updated, inserted := insertReply(post.Comments, parentID, optimistic)
				if !inserted {
					// Parent vanished between render and click; treat as
					// top-level rather than losing the comment.
					updated = prependComment(post.Comments, optimistic)
				}
				post.Comments = updated
			} else {
				post.Comments = prependComment(post.Comments, optimistic)
			}
			post.CommentsCount++
			tx.SetPost(post)
		},
	})
	if !found {
		return fmt.Errorf("comment on post %s: %w", postID, ErrNotCached)
	}

	confirmed, err := c.client.AddComment(ctx, postID, content, parentID)
	if err != nil {
		c.rollback(ctx, "add_comment", snap, err)
		return err
	}

	c.store.Apply(cache.Mutation{
		Name: "add_comment_commit",
		Keys: []cache.Key{cache.PostKey(postID)},
		Fn: func(tx *cache.Tx) {
			post, ok := tx.Post(postID)
			if !ok {
				return
			}
			if updated, replaced := replaceComment(post.Comments, tempID, confirmed); replaced {
				post.Comments = updated
			}
			post.Pending = false
			tx.SetPost(post)
		},
	})
	observability.IncMutation("add_comment", "committed")
	return nil
}

func prependComment(comments []*models.Comment, comment *models.Comment) []*models.Comment {
	out := make([]*models.Comment, 0, len(comments)+1)
	out = append(out, comment)
	return append(out, comments...)
}

// insertReply appends reply to the comment with id parentID, wherever
// it sits in the tree. Only the path from the root to the parent is
// rebuilt; sibling subtrees keep their identity.
func insertReply(comments []*models.Comment, parentID string, reply *models.Comment) ([]*models.Comment, bool) {
	for i, node := range comments {
		if node.ID == parentID {
			updated := *node
			updated.Replies = append(append([]*models.Comment{}, node.Replies...), reply)
			return replaceAt(comments, i, &updated), true
		}
		if len(node.Replies) == 0 {
			continue
		}
		if childReplies, ok := insertReply(node.Replies, parentID, reply); ok {
			updated := *node
			updated.Replies = childReplies
			return replaceAt(comments, i, &updated), true
		}
	}
	return comments, false
}

// replaceComment swaps the node with tempID for the confirmed comment,
// keeping its position and any replies attached since the optimistic
// insert.
func replaceComment(comments []*models.Comment, tempID string, confirmed models.Comment) ([]*models.Comment, bool) {
	for i, node := range comments {
		if node.ID == tempID {
			updated := confirmed
			updated.Pending = false
			if len(updated.Replies) == 0 {
				updated.Replies = node.Replies
			}
			return replaceAt(comments, i, &updated), true
		}
		if len(node.Replies) == 0 {
			continue
		}
		if childReplies, ok := replaceComment(node.Replies, tempID, confirmed); ok {
			updated := *node
			updated.Replies = childReplies
			return replaceAt(comments, i, &updated), true
		}
	}
	return comments, false
}

// replaceAt copies the slice with index i swapped for node; untouched
// elements keep their pointers.
func replaceAt(comments []*models.Comment, i int, node *models.Comment) []*models.Comment {
	out := make([]*models.Comment, len(comments))
	copy(out, comments)
	out[i] = node
	return out
}
