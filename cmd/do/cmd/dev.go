package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/templui/drive/internal/config"
	"github.com/templui/drive/internal/db"
)

func DevCmd() *cobra.Command {
	var (
		port    string
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run the server with air hot-reload",
		RunE: func(cmd *cobra.Command, args []string) error {
			airPath, err := exec.LookPath("air")
			if err != nil {
				return errors.New("air not found, install with: go install github.com/air-verse/air@latest")
			}

			if migrate {
				err = migrateUp(cmd)
				if err != nil {
					return err
				}
			}

			err = buildDo()
			if err != nil {
				return err
			}
			return syscall.Exec(airPath, airArgs(), append(os.Environ(), "PORT="+port))
		},
	}
	cmd.Flags().StringVar(&port, "port", "8090", "port the server listens on")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before starting")
	return cmd
}

func migrateUp(cmd *cobra.Command) error {
	driver, connection := config.LoadDatabase()
	database, err := db.Init(driver, connection)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	return db.RunMigrations(cmd.Context(), database.DB, driver)
}

// buildDo refreshes bin/do so the watcher and the CLI share one build.
func buildDo() error {
	slog.Info("building bin/do")
	build := exec.Command("go", "build", "-o", "bin/do", "./cmd/do")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	err := build.Run()
	if err != nil {
		return fmt.Errorf("failed to build do: %w", err)
	}
	return nil
}

func airArgs() []string {
	return []string{
		"air",
		"-c", "/dev/null",
		"-root", ".",
		"-build.cmd", "go build -o ./tmp/main ./cmd/server",
		"-build.bin", "./tmp/main",
		"-build.delay", "100",
		"-build.exclude_dir", "bin,tmp,data,_examples",
		"-build.exclude_regex", "_test.go$",
		"-build.include_ext", "go,sql",
		"-build.kill_delay", "500ms",
		"-build.send_interrupt", "true",
	}
}
