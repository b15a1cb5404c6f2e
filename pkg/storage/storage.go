// Package storage persists the device configuration using LittleFS.
// It handles atomic writes, version checking, and cleanup of temporary files.
package storage

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/tuffrabit/tinygo-navdisplay/pkg/config"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

const (
	configDir  = "/config"
	deviceFile = "/config/device.bin"
	tempSuffix = ".tmp"
)

var (
	ErrConfigNotFound  = errors.New("config not found")
	ErrInvalidConfig   = errors.New("invalid config data")
	ErrVersionMismatch = errors.New("config version mismatch")
)

// Manager handles config persistence using LittleFS.
type Manager struct {
	fs       *littlefs.LFS
	blockDev tinyfs.BlockDevice
	mounted  bool
	logger   *slog.Logger
}

// Stats provides information about storage usage.
type Stats struct {
	TotalSpace int64
	UsedSpace  int64
	FreeSpace  int64
	HasConfig  bool
}

// New initializes the storage system with the given block device.
// It mounts the filesystem and performs boot-time cleanup.
// If format is true and mount fails, it will format the filesystem.
// A nil logger uses slog.Default().
func New(blockDev tinyfs.BlockDevice, format bool, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	lfs := littlefs.New(blockDev)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 128,
	})

	if err := lfs.Mount(); err != nil {
		if !format {
			return nil, err
		}
		logger.Warn("mount failed, formatting", "err", err)
		if err := lfs.Format(); err != nil {
			return nil, err
		}
		if err := lfs.Mount(); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		fs:       lfs,
		blockDev: blockDev,
		mounted:  true,
		logger:   logger,
	}

	if err := m.bootCleanup(); err != nil {
		logger.Warn("boot cleanup failed", "err", err)
	}

	// A config written by another firmware version is dropped. The
	// defaults apply until the host sends a new one.
	mismatch, err := m.checkVersion()
	if err != nil {
		logger.Warn("config unreadable", "err", err)
	}
	if mismatch {
		logger.Warn("config version mismatch, wiping", "want", config.CurrentVersion)
		if err := m.Wipe(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Close unmounts the filesystem.
func (m *Manager) Close() error {
	if m.mounted {
		m.mounted = false
		return m.fs.Unmount()
	}
	return nil
}

// bootCleanup removes temporary files left over from interrupted writes.
func (m *Manager) bootCleanup() error {
	entries, err := m.readDir(configDir)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, tempSuffix) {
			m.logger.Debug("removing stale temp file", "name", name)
			m.fs.Remove(path.Join(configDir, name))
		}
	}
	return nil
}

// readDir reads the directory entries at the given path.
func (m *Manager) readDir(dirPath string) ([]os.FileInfo, error) {
	f, err := m.fs.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !f.IsDir() {
		return nil, errors.New("not a directory")
	}

	return f.Readdir(-1)
}

// checkVersion reports whether the stored config has a different version.
func (m *Manager) checkVersion() (bool, error) {
	var cfg config.DeviceConfig
	err := m.LoadConfig(&cfg)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrVersionMismatch):
		return true, nil
	case errors.Is(err, ErrConfigNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ensureDirs creates the config directory if it doesn't exist.
func (m *Manager) ensureDirs() error {
	if err := m.fs.Mkdir(configDir, 0755); err != nil && !isExist(err) {
		return err
	}
	return nil
}

// isExist checks if an error is "already exists".
// LittleFS errors don't always match os.IsExist, so we check the message too.
func isExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}

// isNotExist is the "no such file" counterpart of isExist.
func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "No directory entry")
}

// LoadConfig loads the device configuration. It returns ErrConfigNotFound
// when none is stored and ErrVersionMismatch when the stored version differs
// from config.CurrentVersion.
func (m *Manager) LoadConfig(cfg *config.DeviceConfig) error {
	f, err := m.fs.Open(deviceFile)
	if err != nil {
		if isNotExist(err) {
			return ErrConfigNotFound
		}
		return err
	}
	defer f.Close()

	buf := make([]byte, config.DeviceConfigSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return ErrInvalidConfig
	}

	var loaded config.DeviceConfig
	if err := loaded.UnmarshalBinary(buf); err != nil {
		return err
	}
	if loaded.Version != config.CurrentVersion {
		return ErrVersionMismatch
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	*cfg = loaded
	return nil
}

// LoadOrDefault returns the stored configuration, or config.Default() when
// none is stored or it cannot be used.
func (m *Manager) LoadOrDefault() config.DeviceConfig {
	var cfg config.DeviceConfig
	if err := m.LoadConfig(&cfg); err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			m.logger.Warn("stored config rejected, using defaults", "err", err)
		}
		return config.Default()
	}
	return cfg
}

// SaveConfig validates and saves the device configuration atomically.
func (m *Manager) SaveConfig(cfg *config.DeviceConfig) error {
	cfg.Version = config.CurrentVersion
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := m.ensureDirs(); err != nil {
		return err
	}

	data, err := cfg.MarshalBinary()
	if err != nil {
		return err
	}

	if err := m.atomicWrite(deviceFile, data); err != nil {
		return err
	}
	m.logger.Info("config saved", "variant", cfg.Variant.String(), "codec", cfg.Codec.String())
	return nil
}

// HasConfig checks if a configuration is stored.
func (m *Manager) HasConfig() bool {
	f, err := m.fs.Open(deviceFile)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Wipe removes the stored configuration and any temp file.
func (m *Manager) Wipe() error {
	m.fs.Remove(deviceFile + tempSuffix)
	if err := m.fs.Remove(deviceFile); err != nil && !isNotExist(err) {
		return err
	}
	return nil
}

// GetStats returns storage statistics.
func (m *Manager) GetStats() (*Stats, error) {
	has := m.HasConfig()

	// LittleFS has no free space call. Estimate the config file plus
	// metadata blocks and directory entries.
	used := int64(100)
	if has {
		used += config.DeviceConfigSize + 32
	}

	total := m.blockDev.Size()

	return &Stats{
		TotalSpace: total,
		UsedSpace:  used,
		FreeSpace:  total - used,
		HasConfig:  has,
	}, nil
}

// atomicWrite writes data to a temporary file, syncs it, then renames.
// The original file is never in a partially written state.
func (m *Manager) atomicWrite(filepath string, data []byte) error {
	tempPath := filepath + tempSuffix

	m.fs.Remove(tempPath)

	f, err := m.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		m.fs.Remove(tempPath)
		return err
	}

	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			m.fs.Remove(tempPath)
			return err
		}
	}

	if err := f.Close(); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	// LittleFS rename doesn't replace
	m.fs.Remove(filepath)

	if err := m.fs.Rename(tempPath, filepath); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	return nil
}
