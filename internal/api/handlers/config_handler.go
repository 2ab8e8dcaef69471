package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/virtualvisits/config"
	"github.com/yoockh/virtualvisits/internal/services"
)

type ConfigHandler struct {
	client config.ClientConfig
}

func NewConfigHandler(client config.ClientConfig) *ConfigHandler {
	return &ConfigHandler{client: client}
}

func (h *ConfigHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.client)
}

type TokenHandler struct {
	svc services.TokenService
}

func NewTokenHandler(svc services.TokenService) *TokenHandler {
	return &TokenHandler{svc: svc}
}

// Issue mints a new communication user and token; ?scope=voip,chat.
func (h *TokenHandler) Issue(c *gin.Context) {
	tok, err := h.svc.Issue(c.Request.Context(), c.Query("scope"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, tok)
}
