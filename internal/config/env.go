package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv tries to load env vars from .env.local and .env, starting in
// the working directory and walking up (so running from cmd/susubot or a
// test subdir still finds the repo root file).
//
// It only sets vars that are not already set, matching godotenv's behavior.
func LoadDotEnv(logPrefix string) {
	if IsDotEnvDisabled() {
		return
	}

	var paths []string
	if wd, err := os.Getwd(); err == nil {
		for d := wd; ; {
			paths = append(paths, filepath.Join(d, ".env.local"), filepath.Join(d, ".env"))
			parent := filepath.Dir(d)
			if parent == d {
				break
			}
			d = parent
		}
	} else {
		paths = []string{".env.local", ".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			log.Fatalf("%s failed to load %s: %v", logPrefix, p, err)
		} else {
			log.Printf("%s loaded env from %s", logPrefix, p)
		}
	}
}

func IsDotEnvDisabled() bool {
	v := strings.TrimSpace(os.Getenv("SUSU_DOTENV"))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "0", "false", "off", "no":
		return true
	default:
		return false
	}
}
