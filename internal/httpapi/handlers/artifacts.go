package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-workflow/internal/artifact"
	"github.com/suPer8Hu/llm-workflow/internal/audit"
	"github.com/suPer8Hu/llm-workflow/internal/common"
)

type createEmbeddingReq struct {
	VectorID    string `json:"vector_id"`
	TextSnippet string `json:"text_snippet"`
	Namespace   string `json:"namespace"`
}

func (h *Handler) CreateEmbedding(c *gin.Context) {
	var req createEmbeddingReq
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.Artifacts.CreateEmbedding(c.Request.Context(), artifact.NewEmbedding{
		SessionMessageID: c.Param("id"),
		VectorID:         req.VectorID,
		TextSnippet:      req.TextSnippet,
		Namespace:        req.Namespace,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, e)
}

func (h *Handler) ListMessageEmbeddings(c *gin.Context) {
	list, err := h.Artifacts.ListEmbeddingsByMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"embeddings": list})
}

func (h *Handler) ListEmbeddings(c *gin.Context) {
	ns := c.Query("namespace")
	if ns == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "namespace required")
		return
	}
	list, err := h.Artifacts.ListEmbeddingsByNamespace(c.Request.Context(), ns, queryInt(c, "limit"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"embeddings": list})
}

func (h *Handler) DeleteEmbedding(c *gin.Context) {
	id := c.Param("id")
	if err := h.Artifacts.DeleteEmbedding(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}

type createFileReq struct {
	ProjectID   string `json:"project_id" binding:"required"`
	StoragePath string `json:"storage_path" binding:"required"`
	SizeBytes   *int64 `json:"size_bytes"`
	MimeType    string `json:"mime_type"`
}

func (h *Handler) CreateFile(c *gin.Context) {
	var req createFileReq
	if !bindJSON(c, &req) {
		return
	}
	f, err := h.Artifacts.CreateFile(c.Request.Context(), artifact.NewFile{
		ProjectID:   req.ProjectID,
		UploaderID:  actor(c),
		StoragePath: req.StoragePath,
		SizeBytes:   req.SizeBytes,
		MimeType:    req.MimeType,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "file.create", "file", f.ID, gin.H{"project_id": f.ProjectID, "storage_path": f.StoragePath})
	common.OK(c, f)
}

func (h *Handler) ListFiles(c *gin.Context) {
	projectID := c.Query("project_id")
	if projectID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "project_id required")
		return
	}
	files, err := h.Artifacts.ListFiles(c.Request.Context(), projectID, queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"files": files})
}

func (h *Handler) GetFile(c *gin.Context) {
	f, err := h.Artifacts.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, f)
}

func (h *Handler) DeleteFile(c *gin.Context) {
	id := c.Param("id")
	if err := h.Artifacts.DeleteFile(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "file.delete", "file", id, nil)
	common.OK(c, gin.H{"deleted": id})
}

func (h *Handler) ListAudit(c *gin.Context) {
	entries, err := h.Audit.List(c.Request.Context(), audit.Filter{
		ActorID:      c.Query("actor_id"),
		Action:       c.Query("action"),
		ResourceType: c.Query("resource_type"),
		ResourceID:   c.Query("resource_id"),
		Limit:        queryInt(c, "limit"),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"entries": entries})
}
