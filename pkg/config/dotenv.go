package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// maxParentDirs bounds how far above the working directory .env files are searched
const maxParentDirs = 3

// DotEnvCandidates lists the .env paths checked for dir: dir itself and up to
// three of its parents, nearest first.
func DotEnvCandidates(dir string) []string {
	candidates := []string{filepath.Join(dir, ".env")}
	current := dir
	for i := 0; i < maxParentDirs; i++ {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		candidates = append(candidates, filepath.Join(parent, ".env"))
		current = parent
	}
	return candidates
}

// LoadDotEnv loads every .env found from the working directory upwards. Variables
// that are already set are left alone, and nearer files win over farther ones.
// Unreadable files are skipped.
func LoadDotEnv() []string {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	return LoadDotEnvFrom(cwd)
}

// LoadDotEnvFrom is LoadDotEnv rooted at dir. It returns the files that were loaded.
func LoadDotEnvFrom(dir string) []string {
	var loaded []string
	for _, path := range DotEnvCandidates(dir) {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			continue
		}
		loaded = append(loaded, path)
	}
	return loaded
}
