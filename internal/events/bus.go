// Package events is an in-process publish/subscribe bus with one topic per
// resource action, so subscribers refresh only what an event touches.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Topic string

const (
	CommentCreated   Topic = "comment.created"
	CommentUpdated   Topic = "comment.updated"
	CommentDeleted   Topic = "comment.deleted"
	CommentModerated Topic = "comment.moderated"
	CommentFlagged   Topic = "comment.flagged"
	CommentLiked     Topic = "comment.liked"

	PostCreated Topic = "post.created"
	PostUpdated Topic = "post.updated"
	PostDeleted Topic = "post.deleted"
	PostViewed  Topic = "post.viewed"
)

// CommentTopics lists every comment topic.
var CommentTopics = []Topic{CommentCreated, CommentUpdated, CommentDeleted, CommentModerated, CommentFlagged, CommentLiked}

// PostTopics lists every post topic.
var PostTopics = []Topic{PostCreated, PostUpdated, PostDeleted, PostViewed}

// Event is a single published change. Statuses are empty when they do not
// apply (e.g. OldStatus of a created comment).
type Event struct {
	Topic     Topic
	PostID    string
	CommentID string
	ParentID  string
	ActorID   uint
	OldStatus string
	NewStatus string
	At        time.Time
}

// Handler receives events for the topics it subscribed to.
type Handler func(ctx context.Context, ev Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events synchronously, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]subscription
	nextID uint64
	log    *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs: make(map[Topic][]subscription),
		log:  logger,
	}
}

// Subscribe registers h for each topic and returns a function that removes
// the registration.
func (b *Bus) Subscribe(h Handler, topics ...Topic) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, t := range topics {
		b.subs[t] = append(b.subs[t], subscription{id: id, handler: h})
	}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range topics {
			list := b.subs[t]
			for i := range list {
				if list[i].id == id {
					b.subs[t] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		}
	}
}

// Publish runs every handler subscribed to ev.Topic. A panicking handler is
// logged and does not stop the others.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Topic]))
	for _, s := range b.subs[ev.Topic] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, ev)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("topic", string(ev.Topic)),
				zap.Any("panic", r),
			)
		}
	}()
	h(ctx, ev)
}
