package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/collabboard/internal/repository"
	"github.com/immxrtalbeast/collabboard/internal/service"
)

type UserController struct {
	users service.UserInteractor
}

func NewUserController(users service.UserInteractor) *UserController {
	return &UserController{users: users}
}

func (c *UserController) CreateUser(ctx *gin.Context) {
	type CreateUserRequest struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email"`
	}
	var req CreateUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	user, err := c.users.CreateUser(ctx.Request.Context(), req.Name, req.Email)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrUserEmailExists) {
			status = http.StatusConflict
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

func (c *UserController) GetUser(ctx *gin.Context) {
	userID, err := uuid.Parse(ctx.Param("userID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := c.users.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user})
}
