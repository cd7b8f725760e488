package service

import (
	"path"
	"regexp"
	"strings"
)

const (
	defaultProjectName = "project"
	maxProjectName     = 60
)

var nameDisallowed = regexp.MustCompile(`[^A-Za-z0-9 _.\-]`)

// SanitizeName keeps ASCII alphanumerics, space, '-', '_' and '.', trims and
// truncates the result, falling back to the default project name
func SanitizeName(name string) string {
	n := strings.TrimSpace(nameDisallowed.ReplaceAllString(name, ""))
	if len(n) > maxProjectName {
		n = strings.TrimSpace(n[:maxProjectName])
	}
	if n == "" {
		return defaultProjectName
	}
	return n
}

type scaffoldFile struct {
	path    string
	content func(name string) string
}

// scaffold is written into every new project
var scaffold = []scaffoldFile{
	{"main.py", func(string) string {
		return `import json
import os


def load_env(path="ENV_VARS.json"):
    if os.path.exists(path):
        with open(path) as f:
            for key, value in json.load(f).items():
                os.environ.setdefault(key, str(value))


def main():
    load_env()
    print("Hello from your Mini App project!")


if __name__ == "__main__":
    main()
`
	}},
	{"requirements.txt", func(string) string {
		return "# one dependency per line, e.g.\n# requests==2.32.3\n"
	}},
	{"ENV_VARS.json", func(string) string {
		return "{\n  \"EXAMPLE_KEY\": \"change-me\"\n}\n"
	}},
	{"README.md", func(name string) string {
		return "# " + name + "\n\nCreated with the Telegram Mini App project manager.\n\n" +
			"- `main.py` is the entry point\n" +
			"- `requirements.txt` lists dependencies\n" +
			"- `ENV_VARS.json` is a template for environment variables\n"
	}},
}

var allowedExtensions = map[string]bool{
	".py": true, ".txt": true, ".md": true, ".json": true, ".js": true, ".mjs": true,
	".ts": true, ".tsx": true, ".jsx": true, ".html": true, ".htm": true, ".css": true,
	".scss": true, ".yml": true, ".yaml": true, ".toml": true, ".ini": true, ".cfg": true,
	".conf": true, ".env": true, ".sh": true, ".bat": true, ".go": true, ".rs": true,
	".java": true, ".kt": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true,
	".cs": true, ".rb": true, ".php": true, ".sql": true, ".xml": true, ".csv": true,
	".svg": true, ".lua": true, ".gitignore": true, ".dockerignore": true,
}

var allowedNames = map[string]bool{
	"Dockerfile": true, "Makefile": true, "Procfile": true, "LICENSE": true,
}

// supportedPath is a coarse check on text writes: a path passes when it has
// a recognized extension or sits inside a directory
func supportedPath(rel string) bool {
	p := strings.ReplaceAll(rel, "\\", "/")
	if strings.Contains(p, "/") {
		return true
	}
	if allowedNames[p] {
		return true
	}
	return allowedExtensions[strings.ToLower(path.Ext(p))]
}
