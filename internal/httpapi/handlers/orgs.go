package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/org"
)

type createTeamReq struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) CreateTeam(c *gin.Context) {
	var req createTeamReq
	if !bindJSON(c, &req) {
		return
	}
	team, err := h.Orgs.CreateTeam(c.Request.Context(), actor(c), req.Name)
	if err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "team.create", "team", team.ID, gin.H{"name": team.Name})
	common.OK(c, team)
}

// ListTeams lists the caller's teams.
func (h *Handler) ListTeams(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	teams, err := h.Orgs.ListTeams(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"teams": teams})
}

func (h *Handler) DeleteTeam(c *gin.Context) {
	id := c.Param("id")
	if err := h.Orgs.DeleteTeam(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "team.delete", "team", id, nil)
	common.OK(c, gin.H{"deleted": id})
}

type createProjectReq struct {
	TeamID      string `json:"team_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req createProjectReq
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Orgs.CreateProject(c.Request.Context(), req.TeamID, req.Name, req.Description)
	if err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "project.create", "project", p.ID, gin.H{"team_id": p.TeamID, "name": p.Name})
	common.OK(c, p)
}

func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.Orgs.ListProjects(c.Request.Context(), c.Query("team_id"), queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"projects": projects})
}

func (h *Handler) GetProject(c *gin.Context) {
	p, err := h.Orgs.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, p)
}

type updateProjectReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *Handler) UpdateProject(c *gin.Context) {
	var req updateProjectReq
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Orgs.UpdateProject(c.Request.Context(), c.Param("id"), org.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "project.update", "project", p.ID, req)
	common.OK(c, p)
}

// DeleteProject removes the project with its prompts, sessions and files.
func (h *Handler) DeleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := h.Orgs.DeleteProject(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "project.delete", "project", id, nil)
	common.OK(c, gin.H{"deleted": id})
}
