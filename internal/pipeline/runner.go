package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
	"github.com/holotutor/hub-server-go/internal/model"
	"github.com/holotutor/hub-server-go/internal/repository"
	"github.com/holotutor/hub-server-go/internal/signaling"
)

// Notifier pushes generated replies to a room's live connections.
type Notifier interface {
	Broadcast(roomID, event string, data any)
}

type job struct {
	roomID      string
	companionID string
	userMessage string
}

// Runner executes reply generation on a fixed worker pool, decoupling the
// signaling read loops from the slow external collaborators. Jobs queue up to
// a bound; past it Schedule sheds load instead of blocking a read loop.
type Runner struct {
	pipeline      *Pipeline
	conversations repository.ConversationRepository
	notifier      Notifier
	cfg           *config.Config

	jobs chan job
	wg   sync.WaitGroup

	now func() int64
}

func NewRunner(p *Pipeline, conversations repository.ConversationRepository, notifier Notifier, cfg *config.Config) *Runner {
	return &Runner{
		pipeline:      p,
		conversations: conversations,
		notifier:      notifier,
		cfg:           cfg,
		jobs:          make(chan job, config.PipelineQueueSize),
		now:           func() int64 { return time.Now().Unix() },
	}
}

// Start launches the worker pool. Workers drain until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < config.PipelineWorkers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	log.Info().Int("workers", config.PipelineWorkers).Msg("response pipeline started")
}

// Wait blocks until every worker has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Schedule enqueues reply generation for a student message. Reports false
// when the queue is full.
func (r *Runner) Schedule(roomID, companionID, userMessage string) bool {
	select {
	case r.jobs <- job{roomID: roomID, companionID: companionID, userMessage: userMessage}:
		return true
	default:
		return false
	}
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.jobs:
			r.process(ctx, j)
		}
	}
}

// process generates and delivers one reply. A panic anywhere in the stages
// downgrades to the fallback text so the student still gets an answer and
// the worker survives.
func (r *Runner) process(ctx context.Context, j job) {
	reply := r.generate(ctx, j)

	msg := model.Message{
		Text:      reply.Text,
		Sender:    model.SenderAI,
		Timestamp: r.now(),
		AudioURL:  reply.AudioURL,
		VideoURL:  reply.VideoURL,
	}
	if err := r.conversations.Append(ctx, j.roomID, msg, r.cfg.ConversationTTL()); err != nil {
		log.Error().Err(err).Str("room_id", j.roomID).Msg("failed to persist reply")
	}

	r.notifier.Broadcast(j.roomID, signaling.EventMessage, signaling.ChatPayload{
		Message:   msg.Text,
		Sender:    string(msg.Sender),
		Timestamp: msg.Timestamp,
		AudioURL:  msg.AudioURL,
		VideoURL:  msg.VideoURL,
	})
}

func (r *Runner) generate(ctx context.Context, j job) (reply Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Any("panic", rec).Str("room_id", j.roomID).Msg("reply generation panicked")
			reply = Reply{Text: fallbackReply}
		}
	}()
	return r.pipeline.Generate(ctx, j.roomID, j.companionID, j.userMessage)
}
