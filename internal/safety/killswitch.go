package safety

import "os"

// KillSwitch is the externally-toggled trading interlock. The pipeline only
// reads it; operators flip it through whatever durable signal backs the
// implementation. Absence of the enabling signal always means disabled.
type KillSwitch interface {
	// IsEnabled reports whether trading is currently allowed.
	IsEnabled() bool
	// Enable turns trading on. Idempotent.
	Enable() error
	// Disable turns trading off. Idempotent.
	Disable() error
}

// FileKillSwitch backs the kill switch with a flag file: trading is enabled
// while the file exists. Any error reading the file counts as disabled,
// keeping the fail-safe default.
type FileKillSwitch struct {
	path string
}

// NewFileKillSwitch creates a flag-file kill switch at the given path.
func NewFileKillSwitch(path string) *FileKillSwitch {
	return &FileKillSwitch{path: path}
}

// IsEnabled reports whether the flag file exists.
func (k *FileKillSwitch) IsEnabled() bool {
	_, err := os.Stat(k.path)
	return err == nil
}

// Enable creates the flag file.
func (k *FileKillSwitch) Enable() error {
	return os.WriteFile(k.path, []byte("Trading is ACTIVE. Delete this file to emergency stop.\n"), 0644)
}

// Disable removes the flag file if present.
func (k *FileKillSwitch) Disable() error {
	err := os.Remove(k.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
