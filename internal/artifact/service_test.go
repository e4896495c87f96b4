package artifact

import (
	"context"
	"errors"
	"testing"

	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/db/dbtest"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"github.com/suPer8Hu/llm-workflow/internal/org"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     *Service
	orgs    *org.Service
	user    *models.User
	project *models.Project
	session *models.Session
	message *models.SessionMessage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	ctx := context.Background()
	orgs := org.NewService(org.NewRepo(gdb))
	user, err := orgs.CreateUser(ctx, org.NewUser{Email: "files@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	team, err := orgs.CreateTeam(ctx, &user.ID, "team")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	project, err := orgs.CreateProject(ctx, team.ID, "proj", "")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	sess := &models.Session{ProjectID: project.ID}
	if err := gdb.Create(sess).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	msg := &models.SessionMessage{SessionID: sess.ID, Role: models.RoleUser, Content: "index me"}
	if err := gdb.Create(msg).Error; err != nil {
		t.Fatalf("create message: %v", err)
	}
	return &fixture{db: gdb, svc: NewService(NewRepo(gdb)), orgs: orgs, user: user, project: project, session: sess, message: msg}
}

func TestCreateEmbedding_FlagsMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.CreateEmbedding(ctx, NewEmbedding{SessionMessageID: f.message.ID, VectorID: "vec-1", TextSnippet: "index me", Namespace: "chat"})
	if err != nil {
		t.Fatalf("create embedding: %v", err)
	}
	var msg models.SessionMessage
	if err := f.db.First(&msg, "id = ?", f.message.ID).Error; err != nil {
		t.Fatalf("reload message: %v", err)
	}
	if !msg.EmbedIndexed {
		t.Fatalf("message should be flagged embed_indexed")
	}

	// a second embedding for an already indexed message is fine
	if _, err := f.svc.CreateEmbedding(ctx, NewEmbedding{SessionMessageID: f.message.ID, VectorID: "vec-2", Namespace: "chat"}); err != nil {
		t.Fatalf("second embedding: %v", err)
	}
	byNS, err := f.svc.ListEmbeddingsByNamespace(ctx, "chat", 0)
	if err != nil || len(byNS) != 2 {
		t.Fatalf("list by namespace = %d (err %v), want 2", len(byNS), err)
	}

	if _, err := f.svc.CreateEmbedding(ctx, NewEmbedding{SessionMessageID: "01HZZZZZZZZZZZZZZZZZZZZZZZ"}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing message: want NotFound, got %v", err)
	}

	if err := f.svc.DeleteEmbedding(ctx, e.ID); err != nil {
		t.Fatalf("delete embedding: %v", err)
	}
	if _, err := f.svc.GetEmbedding(ctx, e.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("deleted embedding: want NotFound, got %v", err)
	}
}

func TestDeleteSession_CascadesEmbeddings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.CreateEmbedding(ctx, NewEmbedding{SessionMessageID: f.message.ID, Namespace: "chat"}); err != nil {
		t.Fatalf("create embedding: %v", err)
	}
	if err := f.db.Delete(&models.Session{}, "id = ?", f.session.ID).Error; err != nil {
		t.Fatalf("delete session: %v", err)
	}
	list, err := f.svc.ListEmbeddingsByMessage(ctx, f.message.ID)
	if err != nil {
		t.Fatalf("list embeddings: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("%d embeddings survived the session delete", len(list))
	}
}

func TestFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	size := int64(2048)

	file, err := f.svc.CreateFile(ctx, NewFile{ProjectID: f.project.ID, UploaderID: &f.user.ID, StoragePath: "s3://bucket/a.pdf", SizeBytes: &size, MimeType: "application/pdf"})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}

	neg := int64(-1)
	bad := []NewFile{
		{ProjectID: f.project.ID},
		{StoragePath: "x"},
		{ProjectID: f.project.ID, StoragePath: "x", SizeBytes: &neg},
	}
	for i, in := range bad {
		if _, err := f.svc.CreateFile(ctx, in); !errors.Is(err, common.ErrValidation) {
			t.Fatalf("case %d: want validation error, got %v", i, err)
		}
	}
	if _, err := f.svc.CreateFile(ctx, NewFile{ProjectID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", StoragePath: "x"}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing project: want NotFound, got %v", err)
	}

	if err := f.orgs.DeleteUser(ctx, f.user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, err := f.svc.GetFile(ctx, file.ID)
	if err != nil || got.UploaderID != nil {
		t.Fatalf("file should survive its uploader with NULL uploader: %+v (err %v)", got, err)
	}

	if err := f.orgs.DeleteProject(ctx, f.project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	files, err := f.svc.ListFiles(ctx, f.project.ID, 0, 0)
	if err != nil || len(files) != 0 {
		t.Fatalf("files should cascade with the project, got %d (err %v)", len(files), err)
	}
}

func TestDelete_StoreFailureIsNotNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sqlDB, err := f.db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	_ = sqlDB.Close()

	for name, err := range map[string]error{
		"embedding": f.svc.DeleteEmbedding(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ"),
		"file":      f.svc.DeleteFile(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ"),
	} {
		if err == nil || errors.Is(err, common.ErrNotFound) {
			t.Fatalf("delete %s on closed store: got %v, want a store error", name, err)
		}
	}
}
