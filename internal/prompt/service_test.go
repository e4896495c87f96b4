package prompt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/db"
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
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, dbtest.Open(t))
}

func newFixtureOn(t *testing.T, gdb *gorm.DB) *fixture {
	t.Helper()
	orgs := org.NewService(org.NewRepo(gdb))
	ctx := context.Background()

	user, err := orgs.CreateUser(ctx, org.NewUser{Email: "owner@example.com", Name: "Owner"})
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
	return &fixture{db: gdb, svc: NewService(NewRepo(gdb)), orgs: orgs, user: user, project: project}
}

func (f *fixture) createPrompt(t *testing.T, name string, tags []string, initial bool) *models.Prompt {
	t.Helper()
	p, err := f.svc.CreatePrompt(context.Background(), NewPrompt{
		ProjectID:      f.project.ID,
		OwnerID:        &f.user.ID,
		Name:           name,
		Template:       "Summarize: {{text}}",
		Tags:           tags,
		InitialVersion: initial,
	})
	if err != nil {
		t.Fatalf("create prompt %s: %v", name, err)
	}
	return p
}

func TestVersioningLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPrompt(t, "Summarize", nil, false)
	if p.LatestVersionID != nil {
		t.Fatalf("new prompt without initial version must have nil latest, got %v", *p.LatestVersionID)
	}
	if _, err := f.svc.LatestVersion(ctx, p.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("latest of versionless prompt: want NotFound, got %v", err)
	}

	v1, err := f.svc.CreateVersion(ctx, p.ID, NewVersion{Template: "Summarize briefly: {{text}}", AuthorID: &f.user.ID})
	if err != nil {
		t.Fatalf("create v1: %v", err)
	}
	if v1.VersionNumber != 1 {
		t.Fatalf("first version number = %d, want 1", v1.VersionNumber)
	}
	v2, err := f.svc.CreateVersion(ctx, p.ID, NewVersion{Template: "Summarize in one line: {{text}}", Diff: "shorter"})
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}
	if v2.VersionNumber != 2 {
		t.Fatalf("second version number = %d, want 2", v2.VersionNumber)
	}

	got, err := f.svc.GetPrompt(ctx, p.ID)
	if err != nil {
		t.Fatalf("get prompt: %v", err)
	}
	if got.LatestVersionID == nil || *got.LatestVersionID != v2.ID {
		t.Fatalf("latest_version_id = %v, want %s", got.LatestVersionID, v2.ID)
	}
	if got.Template != v2.Template {
		t.Fatalf("prompt template = %q, want copy of latest %q", got.Template, v2.Template)
	}

	latest, err := f.svc.LatestVersion(ctx, p.ID)
	if err != nil || latest.ID != v2.ID {
		t.Fatalf("latest version = %v (err %v), want %s", latest, err, v2.ID)
	}

	// v1 content must be frozen
	stored, err := f.svc.GetVersion(ctx, p.ID, 1)
	if err != nil {
		t.Fatalf("get v1: %v", err)
	}
	stored.Template = "rewritten"
	if err := f.db.Save(stored).Error; !errors.Is(err, common.ErrValidation) {
		t.Fatalf("save on a version: want validation error, got %v", err)
	}
	if err := f.db.Model(&models.PromptVersion{}).Where("id = ?", v1.ID).Update("template", "x").Error; !errors.Is(err, common.ErrValidation) {
		t.Fatalf("update on a version: want validation error, got %v", err)
	}
	if err := f.db.Delete(stored).Error; !errors.Is(err, common.ErrValidation) {
		t.Fatalf("delete on a version: want validation error, got %v", err)
	}
	again, err := f.svc.GetVersionByID(ctx, v1.ID)
	if err != nil {
		t.Fatalf("reload v1: %v", err)
	}
	if again.Template != "Summarize briefly: {{text}}" {
		t.Fatalf("v1 template changed to %q", again.Template)
	}
}

func TestCreatePrompt_InitialVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPrompt(t, "with-v1", nil, true)
	if p.LatestVersionID == nil {
		t.Fatalf("expected latest_version_id to be set")
	}
	v, err := f.svc.GetVersionByID(ctx, *p.LatestVersionID)
	if err != nil {
		t.Fatalf("get initial version: %v", err)
	}
	if v.VersionNumber != 1 || v.Template != p.Template || v.PromptID != p.ID {
		t.Fatalf("unexpected initial version %+v", v)
	}
	if v.CreatedBy == nil || *v.CreatedBy != f.user.ID {
		t.Fatalf("initial version author = %v, want owner", v.CreatedBy)
	}

	// an empty template snapshots the current one
	v2, err := f.svc.CreateVersion(ctx, p.ID, NewVersion{})
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}
	if v2.VersionNumber != 2 || v2.Template != p.Template {
		t.Fatalf("snapshot version = %+v", v2)
	}
}

func TestCreatePrompt_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []NewPrompt{
		{ProjectID: f.project.ID, Template: "t"},
		{ProjectID: f.project.ID, Name: "n"},
		{Name: "n", Template: "t"},
	}
	for i, in := range cases {
		if _, err := f.svc.CreatePrompt(ctx, in); !errors.Is(err, common.ErrValidation) {
			t.Fatalf("case %d: want validation error, got %v", i, err)
		}
	}

	if _, err := f.svc.CreatePrompt(ctx, NewPrompt{ProjectID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", Name: "n", Template: "t"}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing project: want NotFound, got %v", err)
	}

	f.createPrompt(t, "dup", nil, false)
	if _, err := f.svc.CreatePrompt(ctx, NewPrompt{ProjectID: f.project.ID, Name: "dup", Template: "t"}); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("duplicate name: want Conflict, got %v", err)
	}
}

func TestCreateVersion_MissingPrompt(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateVersion(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ", NewVersion{Template: "t"})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestCreateVersion_ConcurrentNumbersAreContiguous(t *testing.T) {
	// a file store with a real pool, so writers contend for the write lock
	f := newFixtureOn(t, dbtest.OpenFile(t, 8, 2*time.Second))
	ctx := context.Background()
	p := f.createPrompt(t, "busy", nil, true)

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.CreateVersion(ctx, p.ID, NewVersion{Template: fmt.Sprintf("t%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent create: %v", err)
		}
	}

	versions, err := f.svc.ListVersions(ctx, p.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != writers+1 {
		t.Fatalf("got %d versions, want %d", len(versions), writers+1)
	}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			t.Fatalf("version[%d] number = %d, want %d", i, v.VersionNumber, i+1)
		}
	}
	got, _ := f.svc.GetPrompt(ctx, p.ID)
	last := versions[len(versions)-1]
	if got.LatestVersionID == nil || *got.LatestVersionID != last.ID {
		t.Fatalf("latest_version_id = %v, want highest version %s", got.LatestVersionID, last.ID)
	}
}

func TestCreateVersion_GivesUpWithConflict(t *testing.T) {
	gdb := dbtest.OpenFile(t, 2, 0)
	f := newFixtureOn(t, gdb)
	ctx := context.Background()
	p := f.createPrompt(t, "locked", nil, true)

	// another connection holds the write lock for the whole call
	holder := gdb.Begin()
	if err := holder.Exec("UPDATE users SET name = name").Error; err != nil {
		t.Fatalf("take write lock: %v", err)
	}

	_, err := f.svc.CreateVersion(ctx, p.ID, NewVersion{Template: "v2"})
	if !errors.Is(err, common.ErrConflict) {
		holder.Rollback()
		t.Fatalf("want Conflict after retries, got %v", err)
	}

	if err := holder.Rollback().Error; err != nil {
		t.Fatalf("release write lock: %v", err)
	}
	v, err := f.svc.CreateVersion(ctx, p.ID, NewVersion{Template: "v2"})
	if err != nil {
		t.Fatalf("create after release: %v", err)
	}
	if v.VersionNumber != 2 {
		t.Fatalf("version_number = %d, want 2", v.VersionNumber)
	}
}

func TestListPrompts_TagFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.createPrompt(t, "a", []string{"summarize", "en", "summarize"}, false)
	b := f.createPrompt(t, "b", []string{"summarize", "de"}, false)
	f.createPrompt(t, "c", []string{"Summarize"}, false)

	if len(a.Tags) != 2 || a.Tags[0] != "summarize" || a.Tags[1] != "en" {
		t.Fatalf("tags not deduplicated in order: %v", a.Tags)
	}

	ids := func(ps []models.Prompt) map[string]bool {
		out := map[string]bool{}
		for _, p := range ps {
			out[p.ID] = true
		}
		return out
	}

	got, err := f.svc.ListPrompts(ctx, f.project.ID, db.TagFilter{Any: []string{"summarize"}}, 0, 0)
	if err != nil {
		t.Fatalf("list any: %v", err)
	}
	if m := ids(got); len(m) != 2 || !m[a.ID] || !m[b.ID] {
		t.Fatalf("any(summarize) = %v, want a and b only", m)
	}

	got, err = f.svc.ListPrompts(ctx, f.project.ID, db.TagFilter{All: []string{"summarize", "de"}}, 0, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("all(summarize,de) = %v, want b", ids(got))
	}

	got, err = f.svc.ListPrompts(ctx, f.project.ID, db.TagFilter{Any: []string{"en", "de"}}, 0, 0)
	if err != nil {
		t.Fatalf("list any: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("any(en,de) returned %d prompts, want 2", len(got))
	}

	got, err = f.svc.ListPrompts(ctx, f.project.ID, db.TagFilter{}, 0, 0)
	if err != nil {
		t.Fatalf("list unfiltered: %v", err)
	}
	if len(got) != 3 || got[0].Name != "c" {
		t.Fatalf("unfiltered list should hold 3 prompts newest first, got %d", len(got))
	}
}

func TestUpdatePrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createPrompt(t, "old", []string{"x"}, true)

	name := "new"
	model := "openai/gpt-4o-mini"
	tags := []string{"y", "y", "z"}
	got, err := f.svc.UpdatePrompt(ctx, p.ID, PromptPatch{Name: &name, DefaultModel: &model, Tags: &tags})
	if err != nil {
		t.Fatalf("update prompt: %v", err)
	}
	if got.Name != "new" || got.DefaultModel != model || len(got.Tags) != 2 {
		t.Fatalf("unexpected prompt after update: %+v", got)
	}
	if got.LatestVersionID == nil || *got.LatestVersionID != *p.LatestVersionID {
		t.Fatalf("update must not touch latest_version_id")
	}

	empty := "  "
	if _, err := f.svc.UpdatePrompt(ctx, p.ID, PromptPatch{Name: &empty}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("blank name: want validation error, got %v", err)
	}
	if _, err := f.svc.UpdatePrompt(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", PromptPatch{Name: &name}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing prompt: want NotFound, got %v", err)
	}
}

func TestDeleteProject_CascadesPromptsAndVersions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createPrompt(t, "gone", nil, true)
	if _, err := f.svc.CreateVersion(ctx, p.ID, NewVersion{Template: "v2"}); err != nil {
		t.Fatalf("create v2: %v", err)
	}

	if err := f.orgs.DeleteProject(ctx, f.project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := f.svc.GetPrompt(ctx, p.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("prompt should be gone, got %v", err)
	}
	var n int64
	f.db.Model(&models.PromptVersion{}).Where("prompt_id = ?", p.ID).Count(&n)
	if n != 0 {
		t.Fatalf("%d versions survived the project delete", n)
	}
}

func TestDeleteUser_KeepsPrompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createPrompt(t, "orphan", nil, true)

	if err := f.orgs.DeleteUser(ctx, f.user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, err := f.svc.GetPrompt(ctx, p.ID)
	if err != nil {
		t.Fatalf("prompt must survive its owner: %v", err)
	}
	if got.OwnerID != nil {
		t.Fatalf("owner_id = %v, want NULL", *got.OwnerID)
	}
	v, err := f.svc.GetVersionByID(ctx, *got.LatestVersionID)
	if err != nil {
		t.Fatalf("version must survive its author: %v", err)
	}
	if v.CreatedBy != nil {
		t.Fatalf("created_by = %v, want NULL", *v.CreatedBy)
	}
}

func TestDeletePrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createPrompt(t, "tmp", nil, true)
	if err := f.svc.DeletePrompt(ctx, p.ID); err != nil {
		t.Fatalf("delete prompt: %v", err)
	}
	if err := f.svc.DeletePrompt(ctx, p.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("second delete: want NotFound, got %v", err)
	}
}
