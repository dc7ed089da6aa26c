package skills

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ManifestFile is the file that marks a directory as a skill.
const ManifestFile = "SKILL.md"

type Skill struct {
	Name        string
	Description string
	Path        string
	SkillFile   string
}

// Discover lists the skills that are direct children of dirs.
func Discover(dirs ...string) []Skill {
	var skills []Skill
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if s := load(filepath.Join(dir, e.Name())); s != nil {
				skills = append(skills, *s)
			}
		}
	}
	return skills
}

// FindManifest locates the skill called name inside a skills checkout. The
// candidate paths (relative to root) are tried first; otherwise every
// SKILL.md under root is scanned for a frontmatter name in names.
func FindManifest(root string, candidates []string, names ...string) (*Skill, error) {
	for _, c := range candidates {
		manifest := filepath.Join(root, filepath.FromSlash(c))
		if _, err := os.Stat(manifest); err == nil {
			return load(filepath.Dir(manifest)), nil
		}
	}

	var found *Skill
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() || d.Name() != ManifestFile {
			return nil
		}
		name, desc := extractFrontmatter(path)
		for _, want := range names {
			if name == want {
				found = &Skill{Name: name, Description: desc, Path: filepath.Dir(path), SkillFile: path}
				return filepath.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s for skills: %w", root, err)
	}
	if found == nil {
		return nil, fmt.Errorf("skill manifest for %v not found under %s (checked candidates: %s)",
			names, root, strings.Join(candidates, ", "))
	}
	return found, nil
}

func load(dir string) *Skill {
	skillFile := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(skillFile); err != nil {
		return nil
	}
	name, desc := extractFrontmatter(skillFile)
	if name == "" {
		name = filepath.Base(dir)
	}
	return &Skill{
		Name:        name,
		Description: desc,
		Path:        dir,
		SkillFile:   skillFile,
	}
}

func extractFrontmatter(path string) (name, description string) {
	f, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	inFrontmatter := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			if inFrontmatter {
				break
			}
			inFrontmatter = true
			continue
		}
		if inFrontmatter {
			if k, v, ok := strings.Cut(line, ":"); ok {
				k = strings.TrimSpace(k)
				v = strings.Trim(strings.TrimSpace(v), `"'`)
				switch k {
				case "name":
					name = v
				case "description":
					description = v
				}
			}
		}
	}
	return name, description
}
