package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/model"
	"github.com/holotutor/hub-server-go/internal/repository"
)

// ConnectionHub is the live-connection side of the sweep: rooms with open
// sockets and a way to shut them.
type ConnectionHub interface {
	RoomIDs() []string
	CloseRoom(roomID string) int
}

// SweepJob reconciles the hub's live connections against the state store.
// Room TTLs are the source of truth for liveness; when a room key expires or
// the room ends, its connections are orphans and get closed.
type SweepJob struct {
	hub      ConnectionHub
	rooms    repository.RoomRepository
	interval time.Duration
	done     chan struct{}
}

func NewSweepJob(hub ConnectionHub, rooms repository.RoomRepository, interval time.Duration) *SweepJob {
	return &SweepJob{
		hub:      hub,
		rooms:    rooms,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("hub sweep started")
}

func (j *SweepJob) Stop() {
	close(j.done)
	log.Info().Msg("hub sweep stopped")
}

func (j *SweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, roomID := range j.hub.RoomIDs() {
		room, err := j.rooms.Get(ctx, roomID)
		if err != nil {
			// store hiccups don't justify dropping live calls
			log.Warn().Err(err).Str("room_id", roomID).Msg("sweep lookup failed, keeping connections")
			continue
		}
		if room != nil && room.Status == model.RoomStatusActive {
			continue
		}
		if closed := j.hub.CloseRoom(roomID); closed > 0 {
			log.Info().Str("room_id", roomID).Int("connections", closed).Msg("closed orphaned connections")
		}
	}
}
