package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/llm-workflow/internal/app"
	"github.com/suPer8Hu/llm-workflow/internal/auth"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"github.com/suPer8Hu/llm-workflow/internal/org"
)

const (
	demoEmail   = "demo@local"
	demoTeam    = "default"
	demoProject = "Demo Project"
)

var seedPassword string

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "password for the demo user (only set on creation)")
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Ensure the demo user, team and project exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		orgs := org.NewService(org.NewRepo(app.OpenDB(cfg)))
		res, err := seedDemo(cmd.Context(), orgs, seedPassword)
		if err != nil {
			return err
		}
		fmt.Printf("user    %s %s%s\n", res.User.ID, res.User.Email, createdMark(res.UserCreated))
		fmt.Printf("team    %s %s%s\n", res.Team.ID, res.Team.Name, createdMark(res.TeamCreated))
		fmt.Printf("project %s %s%s\n", res.Project.ID, res.Project.Name, createdMark(res.ProjectCreated))
		return nil
	},
}

type seedResult struct {
	User           *models.User
	Team           *models.Team
	Project        *models.Project
	UserCreated    bool
	TeamCreated    bool
	ProjectCreated bool
}

// seedDemo is idempotent: a second run finds every row and creates nothing.
func seedDemo(ctx context.Context, orgs *org.Service, password string) (*seedResult, error) {
	in := org.NewUser{Email: demoEmail, Name: "Demo", AuthProvider: models.AuthProviderLocal}
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		in.HashedPassword = hash
	}

	var (
		res seedResult
		err error
	)
	if res.User, res.UserCreated, err = orgs.EnsureUser(ctx, in); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	if res.Team, res.TeamCreated, err = orgs.EnsureTeam(ctx, &res.User.ID, demoTeam); err != nil {
		return nil, fmt.Errorf("ensure team: %w", err)
	}
	if res.Project, res.ProjectCreated, err = orgs.EnsureProject(ctx, res.Team.ID, demoProject, "seeded demo project"); err != nil {
		return nil, fmt.Errorf("ensure project: %w", err)
	}
	return &res, nil
}

func createdMark(created bool) string {
	if created {
		return " (created)"
	}
	return ""
}
