// Package orchestrator sequences one inbound chat message through the
// pipeline: synchronous persistence, concurrent context gathering from the
// conversation log and the vector memory store, the completion call, the
// reply emission, and a fire-and-forget background fan-out. Every ordering
// and failure-isolation decision lives here.
//
// The orchestrator keeps no state between messages; everything the next
// message needs is re-read from the log and the memory store.
package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aurorahq/aurora/internal/auth"
	"github.com/aurorahq/aurora/internal/chat"
	"github.com/aurorahq/aurora/internal/llm"
	"github.com/aurorahq/aurora/internal/logger"
	"github.com/aurorahq/aurora/internal/memory"
)

// State names one stage of a message run. Transitions are logged so the
// pipeline's suspension points are observable and testable.
type State int

const (
	StateReceived State = iota
	StatePersisted
	StateContextGathering
	StateGenerating
	StateReplied
	StateBackground
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StatePersisted:
		return "persisted"
	case StateContextGathering:
		return "context_gathering"
	case StateGenerating:
		return "generating"
	case StateReplied:
		return "replied"
	case StateBackground:
		return "background"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConversationLog is the append-only message store the pipeline reads and
// writes. Satisfied by chat.MessageRepo.
type ConversationLog interface {
	Append(ctx context.Context, conversationID, userID uuid.UUID, role, content string) (*chat.Message, error)
	ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]chat.Message, error)
	CountByRole(ctx context.Context, conversationID uuid.UUID, role string) (int64, error)
}

// Directory updates conversation title and activity. Satisfied by
// chat.ConversationRepo.
type Directory interface {
	UpdateTitleAndActivity(ctx context.Context, id, ownerID uuid.UUID, title string) error
	TouchActivity(ctx context.Context, id uuid.UUID) error
}

// ModelClient is the language model surface the pipeline depends on.
// Satisfied by llm.Client. Complete never fails (it substitutes placeholder
// text); Embed reports failure as nil.
type ModelClient interface {
	Complete(ctx context.Context, segments []llm.Segment) string
	Embed(ctx context.Context, text string) []float32
}

// Session is one authenticated connection as the pipeline sees it. Emission
// failures after a disconnect are the session's problem; implementations
// swallow them.
type Session interface {
	Identity() auth.Identity
	EmitReply(conversationID uuid.UUID, content string)
	EmitTitle(conversationID uuid.UUID, title string)
}

// Options tune the context window.
type Options struct {
	HistoryWindow int // recent messages fetched per run (default 20)
	MemoryTopK    int // long-term snippets fetched per run (default 3)
}

type Orchestrator struct {
	log    *logger.Logger
	msgs   ConversationLog
	convs  Directory
	model  ModelClient
	store  memory.Store
	window int
	topK   int
	bg     sync.WaitGroup
}

func New(log *logger.Logger, msgs ConversationLog, convs Directory, model ModelClient, store memory.Store, opts Options) *Orchestrator {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 20
	}
	if opts.MemoryTopK <= 0 {
		opts.MemoryTopK = 3
	}
	return &Orchestrator{
		log:    log.With("component", "orchestrator"),
		msgs:   msgs,
		convs:  convs,
		model:  model,
		store:  store,
		window: opts.HistoryWindow,
		topK:   opts.MemoryTopK,
	}
}

// Handle runs the pipeline for one inbound user message.
//
// The initial persistence write happens synchronously in the caller's
// goroutine, so a connection that calls Handle from its read loop gets
// per-connection persistence in arrival order. Everything after the write
// proceeds concurrently; the reply reaches the session asynchronously.
func (o *Orchestrator) Handle(ctx context.Context, sess Session, conversationID uuid.UUID, content string) {
	r := &run{
		o:              o,
		sess:           sess,
		conversationID: conversationID,
		userID:         sess.Identity().UserID,
		content:        content,
		state:          StateReceived,
		log: o.log.With(
			"conversation_id", conversationID.String(),
			"user_id", sess.Identity().UserID.String(),
		),
	}

	// A disconnect must not cancel a run already under way; the run keeps
	// its deadline-free lifetime and emission simply finds no listener.
	ctx = context.WithoutCancel(ctx)

	msg, err := o.msgs.Append(ctx, conversationID, r.userID, chat.RoleUser, content)
	if err != nil {
		// Fatal-to-run: nothing else is touched.
		r.fail("persist user message", err)
		return
	}
	r.userMessageID = msg.ID
	r.transition(StatePersisted)

	go r.respond(ctx)
}

// Wait blocks until all dispatched background tasks finish. Shutdown only;
// no run ever waits on its own fan-out.
func (o *Orchestrator) Wait() {
	o.bg.Wait()
}

// spawn dispatches a detached background task. Failures are logged and
// swallowed; a panic in one task never reaches the reply path.
func (o *Orchestrator) spawn(name string, log *logger.Logger, fn func() error) {
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("background task panicked", "task", name, "panic", rec)
			}
		}()
		if err := fn(); err != nil {
			log.Error("background task failed", "task", name, "error", err)
		}
	}()
}

// run is the per-message state machine.
type run struct {
	o              *Orchestrator
	sess           Session
	conversationID uuid.UUID
	userID         uuid.UUID
	userMessageID  uuid.UUID
	content        string
	state          State
	log            *logger.Logger
}

func (r *run) transition(next State) {
	r.log.Debug("run state", "from", r.state.String(), "to", next.String())
	r.state = next
}

func (r *run) fail(step string, err error) {
	r.log.Error("run failed", "step", step, "state", r.state.String(), "error", err)
	r.state = StateFailed
	r.sess.EmitReply(r.conversationID, llm.GenericFailureReply)
}

// respond drives the run from context gathering through the background
// fan-out. The caller has already persisted the user message.
func (r *run) respond(ctx context.Context) {
	o := r.o
	r.transition(StateContextGathering)

	// The embedding gates the memory query but its record write never gates
	// the reply. A nil vector skips both.
	vector := o.model.Embed(ctx, r.content)
	if vector != nil {
		rec := memory.Record{
			MessageID:      r.userMessageID,
			OwnerID:        r.userID,
			ConversationID: r.conversationID,
			Role:           chat.RoleUser,
			Text:           r.content,
			Vector:         vector,
		}
		o.spawn("store user memory", r.log, func() error {
			return o.store.Write(ctx, rec)
		})
	}

	var (
		recent   []chat.Message
		snippets []memory.Snippet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = o.msgs.ListRecent(gctx, r.conversationID, o.window)
		return err
	})
	g.Go(func() error {
		if vector == nil {
			return nil
		}
		found, err := o.store.Query(gctx, vector, o.topK, r.userID)
		if err != nil {
			// Degraded-but-complete: continue with short-term memory only.
			r.log.Warn("memory query failed", "error", err)
			return nil
		}
		snippets = found
		return nil
	})
	if err := g.Wait(); err != nil {
		r.fail("read recent history", err)
		return
	}

	segments := BuildContext(chronological(recent), snippets)

	r.transition(StateGenerating)
	reply := o.model.Complete(ctx, segments)

	r.transition(StateReplied)
	r.sess.EmitReply(r.conversationID, reply)

	r.transition(StateBackground)
	r.dispatchBackground(ctx, reply)
	r.transition(StateDone)
}

// dispatchBackground fires the three post-reply tasks. They run independently
// of each other and of the run; individual failures are logged and dropped.
func (r *run) dispatchBackground(ctx context.Context, reply string) {
	o := r.o

	o.spawn("persist assistant reply", r.log, func() error {
		if _, err := o.msgs.Append(ctx, r.conversationID, r.userID, chat.RoleAssistant, reply); err != nil {
			return err
		}
		if err := o.convs.TouchActivity(ctx, r.conversationID); err != nil {
			r.log.Warn("touch activity failed", "error", err)
		}
		return nil
	})

	o.spawn("store assistant memory", r.log, func() error {
		vec := o.model.Embed(ctx, reply)
		if vec == nil {
			return nil
		}
		return o.store.Write(ctx, memory.Record{
			MessageID:      r.userMessageID,
			OwnerID:        r.userID,
			ConversationID: r.conversationID,
			Role:           chat.RoleAssistant,
			Text:           reply,
			Vector:         vec,
		})
	})

	o.spawn("derive title", r.log, func() error {
		count, err := o.msgs.CountByRole(ctx, r.conversationID, chat.RoleUser)
		if err != nil {
			return err
		}
		// Count-based first-message check: exactly one user message means
		// this run's message was the first, so derivation happens once.
		if count != 1 {
			return nil
		}
		title := DeriveTitle(r.content)
		if err := o.convs.UpdateTitleAndActivity(ctx, r.conversationID, r.userID, title); err != nil {
			return err
		}
		r.sess.EmitTitle(r.conversationID, title)
		return nil
	})
}
