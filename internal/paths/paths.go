package paths

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Name used for directory and file naming.
const appName = "sqmean"

// Directory for runtime files (PID file).
//
//	Linux:   $XDG_RUNTIME_DIR/sqmean or ~/.cache/sqmean/run
//	macOS:   ~/Library/Caches/sqmean/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, appName)
	}
	return filepath.Join(xdg.CacheHome, appName, "run")
}

// Directory for state that survives restarts (dump file, log file).
//
//	Linux:   $XDG_STATE_HOME/sqmean
//	macOS:   ~/Library/Application Support/sqmean
func State() string {
	return filepath.Join(xdg.StateHome, appName)
}

// Default path of the JSON configuration file.
func ConfigFile() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.json")
}

// Default path of the snapshot file written by the dumper.
func DumpFile() string {
	return filepath.Join(State(), appName+".dump")
}

// Default path of the log file.
func LogFile() string {
	return filepath.Join(State(), appName+".log")
}

// Default path of the PID file.
func PIDFile() string {
	return filepath.Join(Runtime(), appName+".pid")
}
