package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/db/dbtest"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"github.com/suPer8Hu/llm-workflow/internal/org"
)

func TestRecordAndList(t *testing.T) {
	gdb := dbtest.Open(t)
	ctx := context.Background()
	orgs := org.NewService(org.NewRepo(gdb))
	user, err := orgs.CreateUser(ctx, org.NewUser{Email: "auditor@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	log := New(gdb)
	rid := "01HPROMPT00000000000000000"
	first, err := log.Record(ctx, Entry{ActorID: &user.ID, Action: "prompt.create", ResourceType: "prompt", ResourceID: &rid, Payload: map[string]any{"name": "p"}})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := log.Record(ctx, Entry{ActorID: &user.ID, Action: "prompt.version.create", ResourceType: "prompt", ResourceID: &rid}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := log.Record(ctx, Entry{Action: "project.delete", ResourceType: "project"}); err != nil {
		t.Fatalf("record without actor: %v", err)
	}
	if _, err := log.Record(ctx, Entry{Action: " "}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("blank action: want validation error, got %v", err)
	}

	got, err := log.List(ctx, Filter{ResourceType: "prompt", ResourceID: rid})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Action != "prompt.version.create" {
		t.Fatalf("unexpected entries %+v", got)
	}
	if string(got[1].Payload) != `{"name":"p"}` {
		t.Fatalf("payload = %s", got[1].Payload)
	}

	// append-only
	first.Action = "tampered"
	if err := gdb.Save(first).Error; !errors.Is(err, models.ErrAuditAppendOnly) {
		t.Fatalf("save: want append-only error, got %v", err)
	}
	if err := gdb.Delete(first).Error; !errors.Is(err, models.ErrAuditAppendOnly) {
		t.Fatalf("delete: want append-only error, got %v", err)
	}

	// deleting the actor keeps the history
	if err := orgs.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	all, err := log.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries after actor delete, want 3", len(all))
	}
	for _, e := range all {
		if e.ActorID != nil {
			t.Fatalf("actor_id should be NULL after user delete, got %s", *e.ActorID)
		}
	}
}
