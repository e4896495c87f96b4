package main

import (
	"context"
	"testing"

	"github.com/suPer8Hu/llm-workflow/internal/auth"
	"github.com/suPer8Hu/llm-workflow/internal/db/dbtest"
	"github.com/suPer8Hu/llm-workflow/internal/org"
)

func TestSeedDemo_Idempotent(t *testing.T) {
	orgs := org.NewService(org.NewRepo(dbtest.Open(t)))
	ctx := context.Background()

	first, err := seedDemo(ctx, orgs, "demo-pass")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !first.UserCreated || !first.TeamCreated || !first.ProjectCreated {
		t.Fatalf("first seed created user=%v team=%v project=%v", first.UserCreated, first.TeamCreated, first.ProjectCreated)
	}
	if first.User.HashedPassword == nil || auth.CheckPassword(*first.User.HashedPassword, "demo-pass") != nil {
		t.Fatalf("demo password not stored")
	}

	second, err := seedDemo(ctx, orgs, "")
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if second.UserCreated || second.TeamCreated || second.ProjectCreated {
		t.Fatalf("reseed created rows")
	}
	if second.Project.ID != first.Project.ID || second.Project.Name != demoProject {
		t.Fatalf("project changed: %s -> %s", first.Project.ID, second.Project.ID)
	}
}
