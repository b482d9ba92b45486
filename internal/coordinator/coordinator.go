package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"studenthub-sync/internal/cache"
	"studenthub-sync/internal/models"
	"studenthub-sync/internal/observability"
	"studenthub-sync/internal/telemetry"
)

// ErrNotCached is returned when a mutation targets an entity the cache
// has never seen. There is nothing to apply speculatively against.
var ErrNotCached = errors.New("entity not in cache")

// RestClient is the backend surface the coordinator confirms mutations
// against. Every call returns enough authoritative data for the commit
// step.
type RestClient interface {
	LikePost(ctx context.Context, postID string) (models.LikeResult, error)
	SavePost(ctx context.Context, postID string) (models.SaveResult, error)
	AddComment(ctx context.Context, postID, content, parentID string) (models.Comment, error)
	SendMessage(ctx context.Context, conversationID string, req models.SendMessageRequest) (models.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
	PinConversation(ctx context.Context, conversationID string) error
	UnpinConversation(ctx context.Context, conversationID string) error
	CreateConversation(ctx context.Context, req models.CreateConversationRequest) (string, error)
}

// Coordinator applies a speculative mutation, issues the confirm
// request, and reconciles the result. Each public method blocks until
// its own network call resolves; the cache is never held across the
// call, so concurrent mutations proceed immediately.
type Coordinator struct {
	store    *cache.Store
	client   RestClient
	audit    *telemetry.AuditEmitter
	selfID   string
	selfName string
	now      func() time.Time
	refresh  func(context.Context) error
}

// New builds a Coordinator. refresh is invoked after creating a
// conversation to pull the authoritative conversation list; it may be
// nil.
func New(store *cache.Store, client RestClient, audit *telemetry.AuditEmitter, selfID, selfName string, refresh func(context.Context) error) *Coordinator {
	return &Coordinator{
		store:    store,
		client:   client,
		audit:    audit,
		selfID:   selfID,
		selfName: selfName,
		now:      time.Now,
		refresh:  refresh,
	}
}

// LikePost toggles the like on a post. The toggle and the count move
// together: a rollback restores both from the same snapshot.
func (c *Coordinator) LikePost(ctx context.Context, postID string) error {
	ctx, span := otel.Tracer("studenthub-sync/coordinator").Start(ctx, "mutation.like")
	span.SetAttributes(attribute.String("post.id", postID))
	defer span.End()

	var (
		snap  cache.Snapshot
		found bool
	)
	c.store.Apply(cache.Mutation{
		Name:  "like_post",
		Local: true,
		Keys:  []cache.Key{cache.PostKey(postID)},
		Fn: func(tx *cache.Tx) {
			post, ok := tx.Post(postID)
			if !ok {
				return
			}
			found = true
			snap = tx.Snapshot(cache.PostKey(postID))

			liked := !post.UserHasLiked
			post.UserHasLiked = liked
			if liked {
				post.LikesCount++
			} else if post.LikesCount > 0 {
				post.LikesCount--
			}
			tx.SetPost(post)
		},
	})
	if !found {
		return fmt.Errorf("like post %s: %w", postID, ErrNotCached)
	}

	res, err := c.client.LikePost(ctx, postID)
	if err != nil {
		c.rollback(ctx, "like_post", snap, err)
		return err
	}

	c.store.Apply(cache.Mutation{
		Name: "like_post_commit",
		Keys: []cache.Key{cache.PostKey(postID)},
		Fn: func(tx *cache.Tx) {
			post, ok := tx.Post(postID)
			if !ok {
				return
			}
			post.UserHasLiked = res.Liked
			post.LikesCount = res.LikesCount
			post.Pending = false
			tx.SetPost(post)
		},
	})
	observability.IncMutation("like_post", "committed")
	return nil
}

// SavePost toggles the saved flag on a post.
func (c *Coordinator) SavePost(ctx context.Context, postID string) error {
	ctx, span := otel.Tracer("studenthub-sync/coordinator").Start(ctx, "mutation.save")
	span.SetAttributes(attribute.String("post.id", postID))
	defer span.End()

	var (
		snap  cache.Snapshot
		found bool
	)
	c.store.Apply(cache.Mutation{
		Name:  "save_post",
		Local: true,
		Keys:  []cache.Key{cache.PostKey(postID)},
		Fn: func(tx *cache.Tx) {
			post, ok := tx.Post(postID)
			if !ok {
				return
			}
			found = true
			snap = tx.Snapshot(cache.PostKey(postID))
			post.UserHasSaved = !post.UserHasSaved
			tx.SetPost(post)
		},
	})
	if !found {
		return fmt.Errorf("save post %s: %w", postID, ErrNotCached)
	}

	res, err := c.client.SavePost(ctx, postID)
	if err != nil {
		c.rollback(ctx, "save_post", snap, err)
		return err
	}

	c.store.Apply(cache.Mutation{
		Name: "save_post_commit",
		Keys: []cache.Key{cache.PostKey(postID)},
		Fn: func(tx *cache.Tx) {
			post, ok := tx.Post(postID)
			if !ok {
				return
			}
			post.UserHasSaved = res.Saved
			post.Pending = false
			tx.SetPost(post)
		},
	})
	observability.IncMutation("save_post", "committed")
	return nil
}

// rollback restores the mutation's own snapshot, never a globally
// stale one: each call closed over the state just before its
// speculative apply.
func (c *Coordinator) rollback(ctx context.Context, kind string, snap cache.Snapshot, cause error) {
	c.store.Restore(snap)
	observability.IncMutation(kind, "rolled_back")
	observability.IncRollback(kind)
	c.audit.Emit(ctx, "WARN", "mutation_rollback", fmt.Sprintf("%s: %v", kind, cause))
}
