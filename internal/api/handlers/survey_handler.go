package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/virtualvisits/internal/models"
	"github.com/yoockh/virtualvisits/internal/services"
)

type SurveyHandler struct {
	svc services.SurveyService
}

func NewSurveyHandler(svc services.SurveyService) *SurveyHandler {
	return &SurveyHandler{svc: svc}
}

func (h *SurveyHandler) Submit(c *gin.Context) {
	var req models.SurveyResult
	if !bindJSON(c, "SurveyHandler.Submit", &req) {
		return
	}
	if err := h.svc.Submit(c.Request.Context(), &req); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
