package application

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationManager collects schema files embedded by modules and applies
// them in registration order. Statements are expected to be idempotent
// (CREATE TABLE IF NOT EXISTS style).
type MigrationManager struct {
	schemas []*embed.FS
}

func NewMigrationManager() *MigrationManager {
	return &MigrationManager{}
}

func (m *MigrationManager) RegisterSchema(fsys *embed.FS) {
	m.schemas = append(m.schemas, fsys)
}

func (m *MigrationManager) Apply(ctx context.Context, pool *pgxpool.Pool) error {
	for _, fsys := range m.schemas {
		files, err := listSQLFiles(fsys)
		if err != nil {
			return err
		}
		for _, file := range files {
			content, err := fsys.ReadFile(file)
			if err != nil {
				return errors.Wrapf(err, "failed to read schema file %s", file)
			}
			if _, err := pool.Exec(ctx, string(content)); err != nil {
				return errors.Wrapf(err, "failed to apply schema file %s", file)
			}
		}
	}
	return nil
}

func listSQLFiles(fsys *embed.FS) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".sql") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
