package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/store/rabbitmq"
	"github.com/suPer8Hu/llm-workflow/internal/usage"
)

type recordEventReq struct {
	ProjectID        *string `json:"project_id"`
	SessionMessageID *string `json:"session_message_id"`
	Model            string  `json:"model" binding:"required"`
	TokensPrompt     int     `json:"tokens_prompt"`
	TokensResponse   int     `json:"tokens_response"`
	CostUSD          float64 `json:"cost_usd"`
	LatencyMS        *int    `json:"latency_ms"`
	Feedback         *int    `json:"feedback"`
}

func (h *Handler) RecordUsageEvent(c *gin.Context) {
	var req recordEventReq
	if !bindJSON(c, &req) {
		return
	}
	ev, err := h.Usage.RecordEvent(c.Request.Context(), usage.NewEvent{
		UserID:           actor(c),
		ProjectID:        req.ProjectID,
		SessionMessageID: req.SessionMessageID,
		Model:            req.Model,
		TokensPrompt:     req.TokensPrompt,
		TokensResponse:   req.TokensResponse,
		CostUSD:          req.CostUSD,
		LatencyMS:        req.LatencyMS,
		Feedback:         req.Feedback,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, ev)
}

func (h *Handler) ListUsageEvents(c *gin.Context) {
	events, err := h.Usage.ListEvents(c.Request.Context(), c.Query("project_id"), queryInt(c, "limit"))
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"events": events})
}

type feedbackReq struct {
	Feedback *int `json:"feedback"`
}

func (h *Handler) SetUsageFeedback(c *gin.Context) {
	var req feedbackReq
	if !bindJSON(c, &req) {
		return
	}
	ev, err := h.Usage.SetFeedback(c.Request.Context(), c.Param("id"), req.Feedback)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, ev)
}

func parseDay(v string) (time.Time, bool) {
	t, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
	return t, err == nil
}

// ListUsageAggregates reads ?from=&to= (YYYY-MM-DD, inclusive); the default
// range is the last 30 days.
func (h *Handler) ListUsageAggregates(c *gin.Context) {
	to := usage.DayStart(time.Now())
	from := to.AddDate(0, 0, -30)
	var ok bool
	if v := c.Query("from"); v != "" {
		if from, ok = parseDay(v); !ok {
			common.Fail(c, http.StatusBadRequest, 10004, "invalid from date")
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, ok = parseDay(v); !ok {
			common.Fail(c, http.StatusBadRequest, 10004, "invalid to date")
			return
		}
	}
	rows, err := h.Usage.ListAggregates(c.Request.Context(), c.Query("project_id"), from, to)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"aggregates": rows})
}

type aggregationJobReq struct {
	Date      string `json:"date"`
	ProjectID string `json:"project_id"`
}

// EnqueueAggregation queues a rebuild of one day's aggregates. Without a
// queue the job runs inline.
func (h *Handler) EnqueueAggregation(c *gin.Context) {
	var req aggregationJobReq
	if !bindJSON(c, &req) {
		return
	}
	day := usage.DayStart(time.Now()).AddDate(0, 0, -1)
	if req.Date != "" {
		var ok bool
		if day, ok = parseDay(req.Date); !ok {
			common.Fail(c, http.StatusBadRequest, 10004, "invalid date")
			return
		}
	}
	job := rabbitmq.NewAggregationJob(day, req.ProjectID)

	if h.Jobs != nil {
		if err := h.Jobs.PublishJob(c.Request.Context(), job); err != nil {
			log.Printf("[EnqueueAggregation] publish date=%s err=%v", job.Date, err)
			common.Fail(c, http.StatusServiceUnavailable, 50302, "job queue unavailable")
			return
		}
		h.record(c, "usage.aggregate.enqueue", "usage_aggregate", "", job)
		common.OK(c, gin.H{"queued": true, "job": job})
		return
	}

	if req.ProjectID != "" {
		agg, err := h.Usage.AggregateProjectDay(c.Request.Context(), req.ProjectID, day)
		if err != nil {
			failErr(c, err)
			return
		}
		common.OK(c, gin.H{"queued": false, "job": job, "aggregates": agg})
		return
	}
	n, err := h.Usage.AggregateDay(c.Request.Context(), day)
	if err != nil {
		failErr(c, err)
		return
	}
	common.OK(c, gin.H{"queued": false, "job": job, "projects": n})
}
