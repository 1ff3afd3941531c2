package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/defense-scheduler/internal/persistence"
)

// directoryFile is the YAML document accepted by "users import".
type directoryFile struct {
	Users []directoryEntry `yaml:"users" validate:"required,min=1,dive"`
}

type directoryEntry struct {
	ID    string `yaml:"id"    validate:"required,max=64"`
	Name  string `yaml:"name"  validate:"required,max=200"`
	Role  string `yaml:"role"  validate:"required,oneof=coordinator student faculty"`
	Email string `yaml:"email" validate:"omitempty,email"`
}

func usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the user directory",
	}
	cmd.AddCommand(usersImportCommand())
	return cmd
}

func usersImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Create or update directory users from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := commandEnv(cmd)
			if err != nil {
				return err
			}
			entries, err := readDirectoryFile(args[0])
			if err != nil {
				return err
			}

			storage, err := openStorage(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()
			if _, err := storage.Migrate(cmd.Context()); err != nil {
				return err
			}

			count, err := importUsers(cmd.Context(), storage.Users, entries)
			if err != nil {
				return err
			}
			logger.Info("directory imported", "users", count)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d users\n", count)
			return nil
		},
	}
}

func readDirectoryFile(path string) ([]directoryEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}
	var doc directoryFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse directory file %s: %w", path, err)
	}
	for i := range doc.Users {
		doc.Users[i].ID = strings.TrimSpace(doc.Users[i].ID)
		doc.Users[i].Name = strings.TrimSpace(doc.Users[i].Name)
		doc.Users[i].Role = strings.ToLower(strings.TrimSpace(doc.Users[i].Role))
		doc.Users[i].Email = strings.TrimSpace(doc.Users[i].Email)
	}
	if err := validateDirectory(doc); err != nil {
		return nil, fmt.Errorf("invalid directory file %s: %w", path, err)
	}
	return doc.Users, nil
}

func validateDirectory(doc directoryFile) error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(doc)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	problems := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Errorf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.Join(problems...)
}

// importUsers upserts entries in order and reports how many were written.
// Nothing is written when an id repeats.
func importUsers(ctx context.Context, repo persistence.UserRepository, entries []directoryEntry) (int, error) {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			return 0, fmt.Errorf("duplicate user id %q", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	for i, e := range entries {
		if err := repo.UpsertUser(ctx, persistence.User{
			ID:    e.ID,
			Name:  e.Name,
			Role:  e.Role,
			Email: e.Email,
		}); err != nil {
			return i, fmt.Errorf("failed to store user %q: %w", e.ID, err)
		}
	}
	return len(entries), nil
}
