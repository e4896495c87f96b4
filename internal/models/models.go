// Package models holds the relational schema: one gorm struct per table,
// with the foreign-key graph expressed as belongs-to constraints.
package models

import (
	"github.com/suPer8Hu/llm-workflow/internal/common"
)

// All lists every table in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Team{},
		&Project{},
		&Prompt{},
		&PromptVersion{},
		&Session{},
		&SessionMessage{},
		&UsageEvent{},
		&UsageAggregate{},
		&Embedding{},
		&File{},
		&AuditLog{},
	}
}

func assignID(id *string) error {
	if *id != "" {
		return nil
	}
	v, err := common.NewULID()
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// normalizeTags drops duplicates while keeping first-seen order. Tags are
// compared exactly; no case folding or trimming.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// NormalizeTags is exported for services that update tag sets in place.
func NormalizeTags(tags []string) []string { return normalizeTags(tags) }
