package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"clinic_inventory_backend/internal/config"
	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/pkg/utils"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

var (
	ErrBackupUnsupported = errors.New("backups are only supported for sqlite databases")
	ErrBackupNotFound    = errors.New("backup not found")
	ErrBackupExists      = errors.New("backup already exists")
)

const (
	BackupKindAuto   = "auto"
	BackupKindManual = "manual"

	autoPrefix   = "Autobackup_"
	manualPrefix = "Manualbackup_"
	backupExt    = ".db"
)

// BackupService snapshots and restores a SQLite database file.
type BackupService interface {
	Create(ctx context.Context, kind string) (*models.BackupFile, error)
	List(ctx context.Context) ([]models.BackupFile, error)
	Path(name string) (string, error)
	CleanOld(ctx context.Context, keep int) (int, error)
	Restore(ctx context.Context, name string) error
}

type backupService struct {
	db     *sqlx.DB
	dbPath string
	dir    string
	log    zerolog.Logger
}

// NewBackupService creates a new instance of BackupService. Every call fails
// with ErrBackupUnsupported unless the database driver is sqlite.
func NewBackupService(db *sqlx.DB, dbCfg config.DatabaseConfig, backupCfg config.BackupConfig) BackupService {
	s := &backupService{db: db, dir: backupCfg.Dir, log: utils.WithComponent("backup")}
	if dbCfg.Driver == config.DriverSQLite {
		s.dbPath = dbCfg.SQLitePath
	}
	return s
}

func (s *backupService) supported() error {
	if s.dbPath == "" {
		return ErrBackupUnsupported
	}
	return nil
}

// backupName is Autobackup_Jan_02_2006.db for scheduled runs; manual backups
// carry the time of day so several can be taken on one date.
func backupName(kind string, at time.Time) string {
	if kind == BackupKindAuto {
		return autoPrefix + at.Format("Jan_02_2006") + backupExt
	}
	return manualPrefix + at.Format("Jan_02_2006_150405") + backupExt
}

func backupKind(name string) string {
	switch {
	case strings.HasPrefix(name, autoPrefix):
		return BackupKindAuto
	case strings.HasPrefix(name, manualPrefix):
		return BackupKindManual
	}
	return ""
}

// Path resolves a backup name inside the backup directory.
func (s *backupService) Path(name string) (string, error) {
	if err := s.supported(); err != nil {
		return "", err
	}
	if name != filepath.Base(name) || backupKind(name) == "" || filepath.Ext(name) != backupExt {
		return "", validationError("invalid backup name %q", name)
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrBackupNotFound, name)
		}
		return "", err
	}
	return path, nil
}

// Create writes a consistent snapshot with VACUUM INTO.
func (s *backupService) Create(ctx context.Context, kind string) (*models.BackupFile, error) {
	if err := s.supported(); err != nil {
		return nil, err
	}
	if kind != BackupKindAuto && kind != BackupKindManual {
		return nil, validationError("unknown backup kind %q", kind)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	name := backupName(kind, nowFunc())
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackupExists, name)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("writing backup %s: %w", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("file", name).Int64("size", info.Size()).Msg("backup created")
	return &models.BackupFile{Name: name, Kind: kind, Size: info.Size(), CreatedAt: info.ModTime().UTC()}, nil
}

// List returns the backups newest first.
func (s *backupService) List(ctx context.Context) ([]models.BackupFile, error) {
	if err := s.supported(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.BackupFile{}, nil
		}
		return nil, err
	}
	out := []models.BackupFile{}
	for _, e := range entries {
		kind := backupKind(e.Name())
		if e.IsDir() || kind == "" || filepath.Ext(e.Name()) != backupExt {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, models.BackupFile{Name: e.Name(), Kind: kind, Size: info.Size(), CreatedAt: info.ModTime().UTC()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CleanOld keeps the newest keep automatic backups and removes the rest.
// Manual backups are never removed.
func (s *backupService) CleanOld(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, validationError("keep must be at least 1")
	}
	backups, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	removed, kept := 0, 0
	for _, b := range backups {
		if b.Kind != BackupKindAuto {
			continue
		}
		if kept < keep {
			kept++
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, b.Name)); err != nil {
			return removed, fmt.Errorf("removing backup %s: %w", b.Name, err)
		}
		removed++
		s.log.Info().Str("file", b.Name).Msg("old backup removed")
	}
	return removed, nil
}

// Restore copies the backup over the database file. The server must not be
// using the database; the previous file is put back if the copy fails.
func (s *backupService) Restore(ctx context.Context, name string) error {
	src, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := restoreFile(src, s.dbPath); err != nil {
		return err
	}
	s.log.Info().Str("file", name).Str("database", s.dbPath).Msg("database restored")
	return nil
}

func restoreFile(src, dst string) error {
	temp := dst + ".temp"
	hadOriginal := true
	if err := copyFile(dst, temp); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("saving current database: %w", err)
		}
		hadOriginal = false
	}
	if err := copyFile(src, dst); err != nil {
		if hadOriginal {
			if rerr := copyFile(temp, dst); rerr != nil {
				return fmt.Errorf("restore failed: %v; rollback failed: %w", err, rerr)
			}
			os.Remove(temp)
		}
		return fmt.Errorf("restoring database: %w", err)
	}
	if hadOriginal {
		os.Remove(temp)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
