package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type Local struct {
	BaseDir string
}

func NewLocal(baseDir string) *Local {
	return &Local{BaseDir: baseDir}
}

func (l *Local) Put(ctx context.Context, key string, data []byte) error {
	_ = ctx

	dst := filepath.Join(l.BaseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (l *Local) Delete(ctx context.Context, key string) error {
	_ = ctx
	return os.Remove(filepath.Join(l.BaseDir, filepath.FromSlash(key)))
}

func (l *Local) String() string { return fmt.Sprintf("local(%s)", l.BaseDir) }
