package internal

import (
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for config directories and env prefixes
	DefaultAppName        = "livecode"
	DefaultAppCMDShortCut = "livecode"
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultJournalPath    = filepath.Join(DefaultConfigPath, "journal")

	// Artifacts written by the bundler and consumed by the watch loop
	DefaultSourceDir    = "src"
	DefaultPackageFile  = "package.cirru"
	DefaultSnapshotFile = "compact.cirru"
	DefaultPatchFile    = ".compact-inc.cirru"
	DefaultSourceExt    = ".cirru"

	// Watch loop settings
	DefaultDebounceMs    = 200
	DefaultMaxDebounceMs = 2000
	DefaultQueueCapacity = 64
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// GetLevelLogger returns a logger filtered at the named level, falling back to info
func GetLevelLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return GetLogger().Level(lvl)
}
