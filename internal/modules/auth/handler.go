package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"propertyhub/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth")
	{
		g.POST("/login", h.Login)
		g.POST("/register", h.Register)
	}
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/me", h.Me)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "invalid request body")
		return
	}

	user, token, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountDisabled):
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorised, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "login failed")
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}

	user, token, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			response.Error(c, http.StatusConflict, response.CodeValidation, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "registration failed")
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"user": user, "token": token})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.GetByID(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "user not found")
		return
	}
	response.Success(c, http.StatusOK, user)
}
