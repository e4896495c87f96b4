package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/prompt"
)

type createPromptReq struct {
	ProjectID    string   `json:"project_id" binding:"required"`
	Name         string   `json:"name" binding:"required"`
	Template     string   `json:"template"`
	DefaultModel string   `json:"default_model"`
	Tags         []string `json:"tags"`
	// nil means true: a new prompt starts at version 1 unless asked otherwise
	InitialVersion *bool `json:"initial_version"`
}

func (h *Handler) CreatePrompt(c *gin.Context) {
	var req createPromptReq
	if !bindJSON(c, &req) {
		return
	}
	initial := req.InitialVersion == nil || *req.InitialVersion
	p, err := h.Prompts.CreatePrompt(c.Request.Context(), prompt.NewPrompt{
		ProjectID:      req.ProjectID,
		OwnerID:        actor(c),
		Name:           req.Name,
		Template:       req.Template,
		DefaultModel:   req.DefaultModel,
		Tags:           req.Tags,
		InitialVersion: initial,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "prompt.create", "prompt", p.ID, gin.H{"project_id": p.ProjectID, "name": p.Name})
	common.OK(c, p)
}

func (h *Handler) ListPrompts(c *gin.Context) {
	prompts, err := h.Prompts.ListPrompts(c.Request.Context(), c.Query("project_id"), tagFilter(c), queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"prompts": prompts})
}

func (h *Handler) GetPrompt(c *gin.Context) {
	p, err := h.Prompts.GetPrompt(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, p)
}

type updatePromptReq struct {
	Name         *string   `json:"name"`
	DefaultModel *string   `json:"default_model"`
	Tags         *[]string `json:"tags"`
}

func (h *Handler) UpdatePrompt(c *gin.Context) {
	var req updatePromptReq
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Prompts.UpdatePrompt(c.Request.Context(), c.Param("id"), prompt.PromptPatch{
		Name:         req.Name,
		DefaultModel: req.DefaultModel,
		Tags:         req.Tags,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "prompt.update", "prompt", p.ID, req)
	common.OK(c, p)
}

func (h *Handler) DeletePrompt(c *gin.Context) {
	id := c.Param("id")
	if err := h.Prompts.DeletePrompt(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "prompt.delete", "prompt", id, nil)
	common.OK(c, gin.H{"deleted": id})
}

type createVersionReq struct {
	Template string `json:"template" binding:"required"`
	Diff     string `json:"diff"`
}

func (h *Handler) CreatePromptVersion(c *gin.Context) {
	var req createVersionReq
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.Prompts.CreateVersion(c.Request.Context(), c.Param("id"), prompt.NewVersion{
		Template: req.Template,
		Diff:     req.Diff,
		AuthorID: actor(c),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "prompt.version.create", "prompt", v.PromptID, gin.H{"version_id": v.ID, "version_number": v.VersionNumber})
	common.OK(c, v)
}

func (h *Handler) ListPromptVersions(c *gin.Context) {
	versions, err := h.Prompts.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"versions": versions})
}

// GetPromptVersion accepts a version number or "latest".
func (h *Handler) GetPromptVersion(c *gin.Context) {
	promptID, raw := c.Param("id"), c.Param("number")
	if raw == "latest" {
		v, err := h.Prompts.LatestVersion(c.Request.Context(), promptID)
		if err != nil {
			failErr(c, err)
			return
		}
		common.OK(c, v)
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid version number")
		return
	}
	v, err := h.Prompts.GetVersion(c.Request.Context(), promptID, n)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, v)
}
