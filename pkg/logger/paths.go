// pkg/logger/paths.go

package logger

import (
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap/zapcore"
)

// platformLogPaths returns candidate log file paths in priority order.
func platformLogPaths() []string {
	switch runtime.GOOS {
	case "windows":
		var paths []string
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "AmberLock", "amberlock.log"))
		}
		if la := os.Getenv("LOCALAPPDATA"); la != "" {
			paths = append(paths, filepath.Join(la, "AmberLock", "amberlock.log"))
		}
		return append(paths, `.\amberlock.log`)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return []string{"./amberlock.log", "/tmp/amberlock/amberlock.log"}
		}
		return []string{
			filepath.Join(home, ".local", "state", "amberlock", "amberlock.log"),
			"./amberlock.log",
			"/tmp/amberlock/amberlock.log",
		}
	}
}

// resolveLogPath returns the first candidate whose directory can be
// created and whose file can be opened for append.
func resolveLogPath() string {
	for _, path := range platformLogPaths() {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			continue
		}
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			continue
		}
		file.Close()
		return path
	}
	return ""
}

func logFileWriter(path string) (zapcore.WriteSyncer, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(file), nil
}
