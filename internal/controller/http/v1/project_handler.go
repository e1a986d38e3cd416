package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yunojang/backend/internal/domain/entity"
)

type ProjectUseCase interface {
	CreateProject(ctx context.Context, title, ownerCode string) (*entity.Project, error)
	GetProject(ctx context.Context, projectID string) (*entity.Project, error)
}

type ProjectHandler struct {
	UseCase ProjectUseCase
}

func NewProjectHandler(u ProjectUseCase) *ProjectHandler {
	return &ProjectHandler{UseCase: u}
}

type createProjectRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *ProjectHandler) CreateProject(c *gin.Context) {
	ownerCode, ok := c.Get("owner_code")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "owner_code required"})
		return
	}

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
		return
	}

	project, err := h.UseCase.CreateProject(c.Request.Context(), req.Title, ownerCode.(string))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"project_id": project.ProjectID, "status": project.Status})
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID := c.Param("project_id")
	project, err := h.UseCase.GetProject(c.Request.Context(), projectID)
	if err != nil {
		if errors.Is(err, entity.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, project)
}
