package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/services"
	"github.com/florentd35/teachly/pkg/response"
)

// DemandHandler exposes teaching demand endpoints.
type DemandHandler struct {
	demands *services.DemandService
}

// NewDemandHandler constructs a DemandHandler.
func NewDemandHandler(demands *services.DemandService) *DemandHandler {
	return &DemandHandler{demands: demands}
}

type sendDemandRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
}

// Send creates a teaching demand from the authenticated student.
func (h *DemandHandler) Send(c *gin.Context) {
	var req sendDemandRequest
	if !bindAndValidate(c, &req) {
		return
	}

	demand, err := h.demands.Send(requestContext(c), currentUserID(c), req.ReceiverID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, demand)
}

// List returns the demands the authenticated user participates in.
func (h *DemandHandler) List(c *gin.Context) {
	demands, err := h.demands.ListForUser(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, demands)
}

// Get returns a single demand visible to the caller.
func (h *DemandHandler) Get(c *gin.Context) {
	demand, err := h.demands.Get(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c), currentRole(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, demand)
}

// Accept accepts a pending demand as the receiving teacher.
func (h *DemandHandler) Accept(c *gin.Context) {
	demand, err := h.demands.Accept(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, demand)
}

// Cancel cancels a pending demand from either side.
func (h *DemandHandler) Cancel(c *gin.Context) {
	demand, err := h.demands.Cancel(requestContext(c), strings.TrimSpace(c.Param("id")), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, demand)
}
