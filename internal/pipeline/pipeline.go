package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
	"github.com/holotutor/hub-server-go/internal/external"
	"github.com/holotutor/hub-server-go/internal/model"
	"github.com/holotutor/hub-server-go/internal/repository"
)

// fallbackReply is what the student hears when the language model is
// unavailable.
const fallbackReply = "I'm having a little trouble thinking right now. Give me a moment and ask again."

// Completer generates the reply text.
type Completer interface {
	Complete(ctx context.Context, messages []external.ChatMessage) (string, error)
}

// Synthesizer renders reply text as audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// TalkRenderer produces a talking-avatar clip for uploaded audio.
type TalkRenderer interface {
	CreateTalk(ctx context.Context, imageURL, audioURL string) (string, error)
}

// AudioUploader persists synthesized audio and returns a public URL.
type AudioUploader interface {
	UploadAudio(ctx context.Context, roomID, filename string, data []byte) (string, error)
}

// CompanionResolver looks up the persona behind a companion id.
type CompanionResolver interface {
	Get(ctx context.Context, id string) (*model.Companion, error)
}

// UsageMeter tracks consumption against the speech synthesis budget.
type UsageMeter interface {
	Add(ctx context.Context, service string, units int64)
	Get(ctx context.Context, service string) int64
}

// Reply is a generated companion response. Text is always present; AudioURL
// and VideoURL are set only for the stages that succeeded.
type Reply struct {
	Text     string
	AudioURL *string
	VideoURL *string
}

// Pipeline generates companion replies in stages: prompt, completion, speech
// synthesis, audio upload, avatar render. Each enrichment stage degrades
// independently, so a reply is never lost to a broken collaborator. Generate
// therefore has no error return.
type Pipeline struct {
	completer     Completer
	synthesizer   Synthesizer
	renderer      TalkRenderer
	uploader      AudioUploader
	companions    CompanionResolver
	usage         UsageMeter
	conversations repository.ConversationRepository
	cfg           *config.Config
}

func New(
	completer Completer,
	synthesizer Synthesizer,
	renderer TalkRenderer,
	uploader AudioUploader,
	companions CompanionResolver,
	usage UsageMeter,
	conversations repository.ConversationRepository,
	cfg *config.Config,
) *Pipeline {
	return &Pipeline{
		completer:     completer,
		synthesizer:   synthesizer,
		renderer:      renderer,
		uploader:      uploader,
		companions:    companions,
		usage:         usage,
		conversations: conversations,
		cfg:           cfg,
	}
}

// Generate produces the companion's reply to a student message. An
// unresolvable companion ends the pipeline immediately with the fixed
// fallback text, before any model call.
func (p *Pipeline) Generate(ctx context.Context, roomID, companionID, userMessage string) Reply {
	companion, err := p.companions.Get(ctx, companionID)
	if err != nil || companion == nil {
		log.Warn().Err(err).Str("companion_id", companionID).Msg("companion lookup failed, serving fallback reply")
		return Reply{Text: fallbackReply}
	}

	history, err := p.conversations.Get(ctx, roomID, config.PromptHistoryTurns)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("history read failed, prompting without context")
		history = nil
	}

	text, err := p.completer.Complete(ctx, buildPrompt(companion, history, userMessage))
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("completion failed, serving fallback reply")
		return Reply{Text: fallbackReply}
	}
	reply := Reply{Text: text}

	audioURL := p.synthesize(ctx, roomID, companion, text)
	if audioURL == "" {
		return reply
	}
	reply.AudioURL = &audioURL

	if companion.AvatarURL == "" {
		return reply
	}
	videoURL, err := p.renderer.CreateTalk(ctx, companion.AvatarURL, audioURL)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("avatar render failed, replying without video")
		return reply
	}
	reply.VideoURL = &videoURL
	return reply
}

// synthesize runs the speech stage and returns the public audio URL, or ""
// when the stage is skipped or fails. The character budget gates the stage
// before any synthesis happens: once usage meets the cap, replies stay
// text-only until the usage window resets. A request that starts under the
// cap proceeds even if it finishes over it.
func (p *Pipeline) synthesize(ctx context.Context, roomID string, companion *model.Companion, text string) string {
	if companion.VoiceID == "" {
		return ""
	}

	if used := p.usage.Get(ctx, config.TTSService); used >= p.cfg.TTSCharBudget {
		log.Warn().
			Int64("used", used).
			Int64("budget", p.cfg.TTSCharBudget).
			Msg("speech budget exhausted, replying text-only")
		return ""
	}

	audio, err := p.synthesizer.Synthesize(ctx, text, companion.VoiceID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("speech synthesis failed, replying text-only")
		return ""
	}
	p.usage.Add(ctx, config.TTSService, int64(len(text)))

	filename := fmt.Sprintf("%d-%s.mp3", time.Now().Unix(), uuid.NewString()[:8])
	url, err := p.uploader.UploadAudio(ctx, roomID, filename, audio)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("audio upload failed, replying text-only")
		return ""
	}
	return url
}
