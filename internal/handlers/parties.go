package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/partyfinder/internal/party"
	"github.com/charlesng35/partyfinder/internal/services"
	"github.com/charlesng35/partyfinder/pkg/response"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PartyHandler exposes party post endpoints.
type PartyHandler struct {
	parties *services.PartyService
}

func NewPartyHandler(parties *services.PartyService) *PartyHandler {
	return &PartyHandler{parties: parties}
}

type slotRequest struct {
	Role          string `json:"role" validate:"required,max=64"`
	RequiredClass string `json:"required_class" validate:"omitempty,max=64"`
}

type characterRequest struct {
	Name         string `json:"character_name" validate:"required,max=64"`
	Class        string `json:"character_class" validate:"required,max=64"`
	ServerID     string `json:"server_id" validate:"omitempty,max=32"`
	Level        int    `json:"level" validate:"gte=0"`
	ItemLevel    int    `json:"item_level" validate:"gte=0"`
	Breakthrough int    `json:"breakthrough" validate:"gte=0"`
	CombatPower  int64  `json:"combat_power" validate:"gte=0"`
}

func (r characterRequest) character() party.Character {
	return party.Character{
		Name:         r.Name,
		Class:        r.Class,
		ServerID:     r.ServerID,
		Level:        r.Level,
		ItemLevel:    r.ItemLevel,
		Breakthrough: r.Breakthrough,
		CombatPower:  r.CombatPower,
	}
}

type scheduleRequest struct {
	IsImmediate  bool       `json:"is_immediate"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	ScheduledEnd *time.Time `json:"scheduled_end"`
	RunCount     int        `json:"run_count" validate:"gte=0,lte=99"`
}

func (r scheduleRequest) schedule() party.Schedule {
	return party.Schedule{
		IsImmediate: r.IsImmediate,
		StartsAt:    r.ScheduledAt,
		EndsAt:      r.ScheduledEnd,
		RunCount:    r.RunCount,
	}
}

type requirementsRequest struct {
	MinItemLevel    int   `json:"min_item_level" validate:"gte=0"`
	MinBreakthrough int   `json:"min_breakthrough" validate:"gte=0"`
	MinCombatPower  int64 `json:"min_combat_power" validate:"gte=0"`
}

func (r requirementsRequest) requirements() party.Requirements {
	return party.Requirements{
		MinItemLevel:    r.MinItemLevel,
		MinBreakthrough: r.MinBreakthrough,
		MinCombatPower:  r.MinCombatPower,
	}
}

type leaderRequest struct {
	SlotNumber int              `json:"slot_number" validate:"required,gte=1"`
	Character  characterRequest `json:"character"`
}

type createPartyRequest struct {
	Title        string              `json:"title" validate:"required,max=120"`
	Description  string              `json:"description" validate:"max=2000"`
	DungeonType  string              `json:"dungeon_type" validate:"required,dungeon_type"`
	DungeonID    string              `json:"dungeon_id" validate:"max=64"`
	DungeonName  string              `json:"dungeon_name" validate:"max=120"`
	DungeonTier  int                 `json:"dungeon_tier" validate:"gte=0"`
	Schedule     scheduleRequest     `json:"schedule"`
	JoinType     string              `json:"join_type" validate:"omitempty,join_type"`
	Requirements requirementsRequest `json:"requirements"`
	Slots        []slotRequest       `json:"slots" validate:"required,min=1,dive"`
	Leader       *leaderRequest      `json:"leader"`
}

type updatePartyRequest struct {
	Title        *string              `json:"title" validate:"omitempty,min=1,max=120"`
	Description  *string              `json:"description" validate:"omitempty,max=2000"`
	DungeonTier  *int                 `json:"dungeon_tier" validate:"omitempty,gte=0"`
	Schedule     *scheduleRequest     `json:"schedule"`
	Requirements *requirementsRequest `json:"requirements"`
}

// Create opens a new party post owned by the caller.
func (h *PartyHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req createPartyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	in := party.CreatePostInput{
		OwnerID:      userID,
		Title:        req.Title,
		Description:  req.Description,
		DungeonType:  req.DungeonType,
		DungeonID:    req.DungeonID,
		DungeonName:  req.DungeonName,
		DungeonTier:  req.DungeonTier,
		Schedule:     req.Schedule.schedule(),
		JoinType:     party.JoinTypeFromLabel(req.JoinType),
		Requirements: req.Requirements.requirements(),
		Slots:        make([]party.SlotInput, len(req.Slots)),
	}
	for i, slot := range req.Slots {
		in.Slots[i] = party.SlotInput{Role: slot.Role, RequiredClass: slot.RequiredClass}
	}
	if req.Leader != nil {
		in.Leader = &party.LeaderInput{SlotNumber: req.Leader.SlotNumber, Character: req.Leader.Character.character()}
	}

	post, err := h.parties.CreatePost(requestContext(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, post)
}

// List pages posts newest first, filtered by dungeon type and status.
func (h *PartyHandler) List(c *gin.Context) {
	limit := clampPage(parseIntQuery(c, "limit", defaultPageSize))
	filter := party.PostFilter{
		DungeonType: strings.ToLower(strings.TrimSpace(c.Query("dungeon_type"))),
		Status:      party.PostRecruiting,
		AfterID:     strings.TrimSpace(c.Query("cursor")),
		Limit:       limit,
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = party.PostStatusFromLabel(status)
	}

	page, err := h.parties.ListPosts(requestContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page.Items, &response.Meta{
		Limit:      limit,
		Count:      len(page.Items),
		NextCursor: page.NextCursor,
	})
}

// My returns the caller's created, joined and pending parties.
func (h *PartyHandler) My(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	view, err := h.parties.MyParties(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Get returns a post with slot occupancy.
func (h *PartyHandler) Get(c *gin.Context) {
	detail, err := h.parties.GetPost(requestContext(c), pathParam(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// Update edits post metadata. Slots cannot be changed.
func (h *PartyHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req updatePartyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	in := party.UpdatePostInput{
		Title:       req.Title,
		Description: req.Description,
		DungeonTier: req.DungeonTier,
	}
	if req.Schedule != nil {
		schedule := req.Schedule.schedule()
		in.Schedule = &schedule
	}
	if req.Requirements != nil {
		requirements := req.Requirements.requirements()
		in.Requirements = &requirements
	}

	post, err := h.parties.UpdatePost(requestContext(c), actorFor(c, userID), pathParam(c, "id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

// Close stops recruiting and rejects pending applications.
func (h *PartyHandler) Close(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	post, err := h.parties.ClosePost(requestContext(c), actorFor(c, userID), pathParam(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, post)
}

// Delete removes the post with its slots and applications.
func (h *PartyHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.parties.DeletePost(requestContext(c), actorFor(c, userID), pathParam(c, "id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Applications pages the applications of a post for its owner.
func (h *PartyHandler) Applications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit := clampPage(parseIntQuery(c, "limit", defaultPageSize))
	page, err := h.parties.ApplicationsForPost(requestContext(c), actorFor(c, userID), pathParam(c, "id"), c.Query("cursor"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeApplicationPage(c, page, limit)
}

func writeApplicationPage(c *gin.Context, page services.ApplicationPage, limit int) {
	response.SuccessWithMeta(c, http.StatusOK, page.Items, &response.Meta{
		Limit:      limit,
		Count:      len(page.Items),
		NextCursor: page.NextCursor,
	})
}

func clampPage(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}
