package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-workflow/internal/ai"
	"github.com/suPer8Hu/llm-workflow/internal/chat"
	"github.com/suPer8Hu/llm-workflow/internal/common"
)

type createSessionReq struct {
	ProjectID string         `json:"project_id" binding:"required"`
	Title     string         `json:"title"`
	Tags      []string       `json:"tags"`
	Metadata  map[string]any `json:"metadata"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionReq
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.ChatSvc.CreateSession(c.Request.Context(), chat.NewSession{
		ProjectID: req.ProjectID,
		CreatedBy: actor(c),
		Title:     req.Title,
		Tags:      req.Tags,
		Metadata:  req.Metadata,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, sess)
}

func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.ChatSvc.ListSessions(c.Request.Context(), c.Query("project_id"), tagFilter(c), queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"sessions": sessions})
}

func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.ChatSvc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, sess)
}

type updateSessionReq struct {
	Title    *string         `json:"title"`
	Tags     *[]string       `json:"tags"`
	Metadata *map[string]any `json:"metadata"`
}

func (h *Handler) UpdateSession(c *gin.Context) {
	var req updateSessionReq
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.ChatSvc.UpdateSession(c.Request.Context(), c.Param("id"), chat.SessionPatch{
		Title:    req.Title,
		Tags:     req.Tags,
		Metadata: req.Metadata,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, sess)
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.ChatSvc.DeleteSession(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	h.record(c, "session.delete", "session", id, nil)
	common.OK(c, gin.H{"deleted": id})
}

type appendMessageReq struct {
	Role            string  `json:"role" binding:"required"`
	Content         string  `json:"content"`
	PromptID        *string `json:"prompt_id"`
	PromptVersionID *string `json:"prompt_version_id"`
	Model           *string `json:"model"`
	TokensPrompt    int     `json:"tokens_prompt"`
	TokensResponse  int     `json:"tokens_response"`
	CostUSD         float64 `json:"cost_usd"`
	RawPath         *string `json:"raw_path"`
}

func (h *Handler) AppendMessage(c *gin.Context) {
	var req appendMessageReq
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.ChatSvc.AppendMessage(c.Request.Context(), c.Param("id"), chat.NewMessage{
		Role:            req.Role,
		Content:         req.Content,
		PromptID:        req.PromptID,
		PromptVersionID: req.PromptVersionID,
		Model:           req.Model,
		TokensPrompt:    req.TokensPrompt,
		TokensResponse:  req.TokensResponse,
		CostUSD:         req.CostUSD,
		RawPath:         req.RawPath,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, msg)
}

// ListMessages pages newest first; pass next_before_id back as before_id.
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), c.Param("id"), queryInt(c, "limit"), c.Query("before_id"))
	if err != nil {
		failErr(c, err)
		return
	}
	var nextBeforeID string
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}
	common.OK(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}

// textContent accepts a plain string or a list of content blocks. Text
// blocks are joined with a space; other block types are dropped.
type textContent string

func (t *textContent) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != nil {
			*t = textContent(*s)
		}
		return nil
	}
	var blocks []json.RawMessage
	if err := json.Unmarshal(b, &blocks); err != nil {
		return fmt.Errorf("content must be a string or a list of blocks: %w", err)
	}
	parts := make([]string, 0, len(blocks))
	for _, raw := range blocks {
		var str string
		if json.Unmarshal(raw, &str) == nil {
			parts = append(parts, str)
			continue
		}
		var block struct {
			Type string  `json:"type"`
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(raw, &block); err != nil {
			return fmt.Errorf("content block: %w", err)
		}
		if block.Text != nil && (block.Type == "" || block.Type == "text") {
			parts = append(parts, *block.Text)
		}
	}
	*t = textContent(strings.Join(parts, " "))
	return nil
}

type runMessage struct {
	Role    string      `json:"role" binding:"required"`
	Content textContent `json:"content"`
}

type runReq struct {
	SessionID string       `json:"session_id"`
	Model     string       `json:"model"`
	Messages  []runMessage `json:"messages" binding:"required_without=Content,dive"`
	// Content is shorthand for a single user message.
	Content string `json:"content" binding:"required_without=Messages"`
}

func (r runReq) providerMessages() []ai.Message {
	if len(r.Messages) == 0 {
		if strings.TrimSpace(r.Content) == "" {
			return nil
		}
		return []ai.Message{{Role: "user", Content: r.Content}}
	}
	msgs := make([]ai.Message, len(r.Messages))
	for i, m := range r.Messages {
		msgs[i] = ai.Message{Role: m.Role, Content: string(m.Content)}
	}
	return msgs
}

func (h *Handler) RunLLM(c *gin.Context) {
	var req runReq
	if !bindJSON(c, &req) {
		return
	}
	msgs := req.providerMessages()
	res, err := h.ChatSvc.Run(c.Request.Context(), chat.RunRequest{
		SessionID: req.SessionID,
		UserID:    actor(c),
		Model:     req.Model,
		Messages:  msgs,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	out := gin.H{
		"content":    res.Content,
		"model":      res.Model,
		"usage":      res.Usage,
		"latency_ms": res.LatencyMS,
	}
	if res.Message != nil {
		out["id"] = res.Message.ID
	}
	if res.UsageEvent != nil {
		out["usage_event_id"] = res.UsageEvent.ID
	}
	common.OK(c, out)
}
