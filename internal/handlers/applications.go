package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/partyfinder/internal/party"
	"github.com/charlesng35/partyfinder/internal/services"
	"github.com/charlesng35/partyfinder/pkg/response"
)

// ApplicationHandler exposes submission and admission endpoints.
type ApplicationHandler struct {
	parties *services.PartyService
}

func NewApplicationHandler(parties *services.PartyService) *ApplicationHandler {
	return &ApplicationHandler{parties: parties}
}

type submitApplicationRequest struct {
	characterRequest
	Message string `json:"message" validate:"max=500"`
}

// Submit applies the caller to a slot.
func (h *ApplicationHandler) Submit(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req submitApplicationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	app, err := h.parties.Submit(requestContext(c), party.SubmitInput{
		PostID:      pathParam(c, "id"),
		SlotID:      pathParam(c, "slotID"),
		ApplicantID: userID,
		Character:   req.character(),
		Message:     req.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, app)
}

// Approve accepts a pending application and fills its slot.
func (h *ApplicationHandler) Approve(c *gin.Context) {
	h.decide(c, h.parties.Approve)
}

// Reject declines a pending application.
func (h *ApplicationHandler) Reject(c *gin.Context) {
	h.decide(c, h.parties.Reject)
}

type decision func(ctx context.Context, actor services.Actor, postID, slotID, applicationID string) (party.Application, error)

func (h *ApplicationHandler) decide(c *gin.Context, fn decision) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	app, err := fn(requestContext(c), actorFor(c, userID), pathParam(c, "id"), pathParam(c, "slotID"), pathParam(c, "applicationID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, app)
}

// Revoke reopens a filled slot, rejecting its occupant.
func (h *ApplicationHandler) Revoke(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	app, err := h.parties.Revoke(requestContext(c), actorFor(c, userID), pathParam(c, "id"), pathParam(c, "slotID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, app)
}

// Withdraw cancels the caller's pending application.
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	app, err := h.parties.Withdraw(requestContext(c), actorFor(c, userID), pathParam(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, app)
}

// Mine pages the caller's applications in submission order.
func (h *ApplicationHandler) Mine(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit := clampPage(parseIntQuery(c, "limit", defaultPageSize))
	page, err := h.parties.MyApplications(requestContext(c), actorFor(c, userID), c.Query("cursor"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeApplicationPage(c, page, limit)
}
