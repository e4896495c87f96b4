package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/ai"
	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/db"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"github.com/suPer8Hu/llm-workflow/internal/prompt"
	"github.com/suPer8Hu/llm-workflow/internal/usage"
	"gorm.io/datatypes"
)

// ErrProvider wraps failures of the upstream model call.
var ErrProvider = errors.New("ai provider failed")

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	repo              *Repo
	prompts           *prompt.Service
	usage             *usage.Service
	registry          *ai.Registry
	defaultModel      string
	contextWindowSize int
}

func NewService(repo *Repo, prompts *prompt.Service, usage *usage.Service, registry *ai.Registry, defaultModel string, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	return &Service{
		repo:              repo,
		prompts:           prompts,
		usage:             usage,
		registry:          registry,
		defaultModel:      defaultModel,
		contextWindowSize: contextWindowSize,
	}
}

type NewSession struct {
	ProjectID string
	CreatedBy *string
	Title     string
	Tags      []string
	Metadata  map[string]any
}

func (s *Service) CreateSession(ctx context.Context, in NewSession) (*models.Session, error) {
	if in.ProjectID == "" {
		return nil, common.Validationf("project_id required")
	}
	sess := &models.Session{
		ProjectID: in.ProjectID,
		CreatedBy: in.CreatedBy,
		Title:     strings.TrimSpace(in.Title),
		Tags:      in.Tags,
		Metadata:  datatypes.JSONMap(in.Metadata),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, db.Translate(err, "session")
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, db.Translate(err, "session")
	}
	return sess, nil
}

func (s *Service) ListSessions(ctx context.Context, projectID string, tags db.TagFilter, limit, offset int) ([]models.Session, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListSessions(ctx, projectID, tags, limit, offset)
}

type SessionPatch struct {
	Title    *string
	Tags     *[]string
	Metadata *map[string]any
}

func (s *Service) UpdateSession(ctx context.Context, id string, patch SessionPatch) (*models.Session, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if patch.Title != nil {
		fields["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Tags != nil {
		fields["tags"] = datatypes.JSONSlice[string](models.NormalizeTags(*patch.Tags))
	}
	if patch.Metadata != nil {
		md := datatypes.JSONMap(*patch.Metadata)
		if md == nil {
			md = datatypes.JSONMap{}
		}
		fields["metadata"] = md
	}
	if len(fields) > 0 {
		if err := s.repo.UpdateSession(ctx, id, fields); err != nil {
			return nil, db.Translate(err, "session")
		}
	}
	return s.GetSession(ctx, id)
}

// DeleteSession removes the session with its messages and their embeddings.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	n, err := s.repo.DeleteSession(ctx, id)
	if err != nil {
		return db.Translate(err, "session")
	}
	if n == 0 {
		return common.NotFoundf("session %s", id)
	}
	return nil
}

type NewMessage struct {
	Role            string
	Content         string
	PromptID        *string
	PromptVersionID *string
	Model           *string
	TokensPrompt    int
	TokensResponse  int
	CostUSD         float64
	RawPath         *string
}

func (in *NewMessage) validate() error {
	if !models.ValidRole(in.Role) {
		return common.Validationf("invalid role %q", in.Role)
	}
	if in.Model != nil && strings.TrimSpace(*in.Model) == "" {
		in.Model = nil
	}
	switch {
	case in.Role == models.RoleAssistant && in.Model == nil:
		return common.Validationf("assistant messages require a model")
	case in.Role == models.RoleUser && in.Model != nil:
		return common.Validationf("user messages cannot carry a model")
	case in.TokensPrompt < 0 || in.TokensResponse < 0:
		return common.Validationf("token counts must be >= 0")
	case in.CostUSD < 0:
		return common.Validationf("cost must be >= 0")
	}
	return nil
}

// resolvePromptRef checks that a referenced version belongs to the
// referenced prompt, filling the prompt from the version when only the
// version is given.
func (s *Service) resolvePromptRef(ctx context.Context, in *NewMessage) error {
	if in.PromptVersionID != nil {
		v, err := s.prompts.GetVersionByID(ctx, *in.PromptVersionID)
		if err != nil {
			return err
		}
		if in.PromptID == nil {
			pid := v.PromptID
			in.PromptID = &pid
		} else if *in.PromptID != v.PromptID {
			return common.Validationf("prompt version %s does not belong to prompt %s", v.ID, *in.PromptID)
		}
		return nil
	}
	if in.PromptID != nil {
		if _, err := s.prompts.GetPrompt(ctx, *in.PromptID); err != nil {
			return err
		}
	}
	return nil
}

// AppendMessage adds a message to the end of a session's log.
func (s *Service) AppendMessage(ctx context.Context, sessionID string, in NewMessage) (*models.SessionMessage, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := s.resolvePromptRef(ctx, &in); err != nil {
		return nil, err
	}
	m := &models.SessionMessage{
		SessionID:       sessionID,
		Role:            in.Role,
		PromptID:        in.PromptID,
		PromptVersionID: in.PromptVersionID,
		Content:         in.Content,
		Model:           in.Model,
		TokensPrompt:    in.TokensPrompt,
		TokensResponse:  in.TokensResponse,
		CostUSD:         in.CostUSD,
		RawPath:         in.RawPath,
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, db.Translate(err, "session message")
	}
	return m, nil
}

func (s *Service) GetMessage(ctx context.Context, id string) (*models.SessionMessage, error) {
	m, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		return nil, db.Translate(err, "session message")
	}
	return m, nil
}

// ListMessages pages backwards through a session, newest first. beforeID is
// the id of the oldest message of the previous page.
func (s *Service) ListMessages(ctx context.Context, sessionID string, limit int, beforeID string) ([]models.SessionMessage, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var cursor *models.SessionMessage
	if beforeID != "" {
		c, err := s.GetMessage(ctx, beforeID)
		if err != nil {
			return nil, err
		}
		if c.SessionID != sessionID {
			return nil, common.Validationf("message %s is not in session %s", beforeID, sessionID)
		}
		cursor = c
	}
	return s.repo.ListMessages(ctx, sessionID, limit, cursor)
}

type RunRequest struct {
	// SessionID is optional; without it nothing but the usage event is stored.
	SessionID string
	UserID    *string
	Model     string
	Messages  []ai.Message
}

type RunResult struct {
	Content    string
	Model      string
	Usage      ai.Usage
	LatencyMS  int
	Message    *models.SessionMessage
	UsageEvent *models.UsageEvent
}

// Run sends a conversation to a model and logs the exchange. Incoming user
// and system messages and the reply are appended to the session, and a usage
// event carrying the provider's token counts and the call latency is recorded.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if len(req.Messages) == 0 {
		return nil, common.Validationf("messages required")
	}
	for _, m := range req.Messages {
		if !models.ValidRole(m.Role) {
			return nil, common.Validationf("invalid role %q", m.Role)
		}
	}
	ref := strings.TrimSpace(req.Model)
	if ref == "" {
		ref = s.defaultModel
	}
	provider, model, err := s.registry.Resolve(ctx, ref)
	if err != nil {
		return nil, common.Validationf("%v", err)
	}

	var sess *models.Session
	if req.SessionID != "" {
		if sess, err = s.GetSession(ctx, req.SessionID); err != nil {
			return nil, err
		}
	}

	providerMsgs := req.Messages
	if sess != nil {
		// stored history first, then the request's turns as given
		hist, err := s.history(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		providerMsgs = append(hist, req.Messages...)
		// assistant turns sent by the client are context only; the log keeps
		// replies this service produced
		for _, m := range req.Messages {
			if m.Role == models.RoleAssistant {
				continue
			}
			if _, err := s.AppendMessage(ctx, sess.ID, NewMessage{Role: m.Role, Content: m.Content}); err != nil {
				return nil, err
			}
		}
	}

	started := time.Now()
	out, err := provider.Chat(ctx, providerMsgs)
	latency := int(time.Since(started).Milliseconds())
	if err != nil {
		log.Printf("[Run] provider error model=%s session_id=%s err=%v", ref, req.SessionID, err)
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if out.Model != "" {
		model = out.Model
	}

	res := &RunResult{
		Content:   out.Content,
		Model:     model,
		Usage:     out.Usage,
		LatencyMS: latency,
	}
	ev := usage.NewEvent{
		UserID:         req.UserID,
		Model:          model,
		TokensPrompt:   out.Usage.PromptTokens,
		TokensResponse: out.Usage.CompletionTokens,
		LatencyMS:      &latency,
	}
	if sess != nil {
		msg, err := s.AppendMessage(ctx, sess.ID, NewMessage{
			Role:           models.RoleAssistant,
			Content:        out.Content,
			Model:          &model,
			TokensPrompt:   out.Usage.PromptTokens,
			TokensResponse: out.Usage.CompletionTokens,
		})
		if err != nil {
			return nil, err
		}
		res.Message = msg
		ev.ProjectID = &sess.ProjectID
		ev.SessionMessageID = &msg.ID
	}
	if res.UsageEvent, err = s.usage.RecordEvent(ctx, ev); err != nil {
		return nil, err
	}
	return res, nil
}

// history returns the last contextWindowSize messages of a session,
// oldest first, as provider input.
func (s *Service) history(ctx context.Context, sessionID string) ([]ai.Message, error) {
	recentDesc, err := s.repo.ListMessages(ctx, sessionID, s.contextWindowSize, nil)
	if err != nil {
		return nil, err
	}
	out := make([]ai.Message, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		out = append(out, ai.Message{Role: recentDesc[i].Role, Content: recentDesc[i].Content})
	}
	return out, nil
}
