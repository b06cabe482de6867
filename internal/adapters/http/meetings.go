package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	store core.Store
	orch  *orch.Orchestrator
	ice   []webrtc.ICEServer
}

type createMeetingRequest struct {
	Title           *string `json:"title" binding:"omitnil,max=255"`
	MaxParticipants *int    `json:"max_participants" binding:"omitnil,min=2,max=50"`
}

type meetingResponse struct {
	ID               domain.RoomID   `json:"id"`
	Code             domain.RoomCode `json:"code"`
	Title            *string         `json:"title"`
	CreatedAt        time.Time       `json:"created_at"`
	IsActive         bool            `json:"is_active"`
	MaxParticipants  int             `json:"max_participants"`
	ParticipantCount int             `json:"participant_count"`
}

type participantResponse struct {
	ID            domain.ParticipantID `json:"id"`
	ClientID      domain.ClientID      `json:"client_id"`
	DisplayName   *string              `json:"display_name"`
	JoinedAt      time.Time            `json:"joined_at"`
	IsActive      bool                 `json:"is_active"`
	IsHost        bool                 `json:"is_host"`
	AudioEnabled  bool                 `json:"audio_enabled"`
	VideoEnabled  bool                 `json:"video_enabled"`
	ScreenSharing bool                 `json:"screen_sharing"`
}

func newMeetingResponse(r *domain.Room, count int) meetingResponse {
	resp := meetingResponse{
		ID:               r.ID,
		Code:             r.Code,
		CreatedAt:        r.CreatedAt,
		IsActive:         r.Active,
		MaxParticipants:  r.MaxParticipants,
		ParticipantCount: count,
	}
	if r.Title != "" {
		title := r.Title
		resp.Title = &title
	}
	return resp
}

func errorJSON(c *gin.Context, status int, detail string) {
	c.JSON(status, gin.H{"detail": detail})
}

func (h *handlers) createMeeting(c *gin.Context) {
	var req createMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		errorJSON(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	title := ""
	if req.Title != nil {
		title = *req.Title
	}
	capacity := domain.DefaultMaxParticipants
	if req.MaxParticipants != nil {
		capacity = *req.MaxParticipants
	}

	room, err := domain.NewRoom(domain.RoomID(uuid.NewString()), title, capacity)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("generate meeting code")
		errorJSON(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	room.CreatedByIP = c.ClientIP()
	if err := h.store.CreateRoom(c.Request.Context(), room); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create meeting")
		errorJSON(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Info().Str("module", "adapters.http").
		Str("room", string(room.Code)).
		Str("ip", room.CreatedByIP).
		Msg("meeting created")
	c.JSON(http.StatusOK, newMeetingResponse(room, 0))
}

// findRoom writes the 404 itself and reports whether the caller may go on.
func (h *handlers) findRoom(c *gin.Context) (*domain.Room, bool) {
	room, err := h.store.FindRoom(c.Request.Context(), domain.RoomCode(c.Param("code")))
	if errors.Is(err, domain.ErrRoomNotFound) {
		errorJSON(c, http.StatusNotFound, "Meeting not found")
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("find meeting")
		errorJSON(c, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	return room, true
}

func (h *handlers) getMeeting(c *gin.Context) {
	room, ok := h.findRoom(c)
	if !ok {
		return
	}
	count, err := h.store.CountActiveParticipants(c.Request.Context(), room.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("count participants")
		errorJSON(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, newMeetingResponse(room, count))
}

func (h *handlers) listParticipants(c *gin.Context) {
	room, ok := h.findRoom(c)
	if !ok {
		return
	}
	rows, err := h.store.ListActiveParticipants(c.Request.Context(), room.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list participants")
		errorJSON(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]participantResponse, len(rows))
	for i, p := range rows {
		out[i] = participantResponse{
			ID:            p.ID,
			ClientID:      p.ClientID,
			DisplayName:   p.DisplayName,
			JoinedAt:      p.JoinedAt,
			IsActive:      p.Active,
			IsHost:        p.IsHost,
			AudioEnabled:  p.AudioEnabled,
			VideoEnabled:  p.VideoEnabled,
			ScreenSharing: p.ScreenSharing,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) status(c *gin.Context) {
	rooms := h.orch.Registry.Rooms()
	total := 0
	for _, r := range rooms {
		total += r.MemberCount
	}
	c.JSON(http.StatusOK, gin.H{
		"app":                AppName,
		"version":            AppVersion,
		"status":             "running",
		"active_meetings":    len(rooms),
		"total_participants": total,
	})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *handlers) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ice})
}
