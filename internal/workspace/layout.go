package workspace

import "path/filepath"

// Layout names the directories and files owned by one run directory.
type Layout struct {
	Root string
}

func (l Layout) Workspace() string   { return filepath.Join(l.Root, "workspace") }
func (l Layout) SkillsRepo() string  { return filepath.Join(l.Root, "skills_repo") }
func (l Layout) Skills() string      { return filepath.Join(l.Root, "skills") }
func (l Layout) SessionRoot() string { return filepath.Join(l.Root, "session") }
func (l Layout) MCPConfig() string   { return filepath.Join(l.Root, "mcp.json") }
func (l Layout) Meta() string        { return filepath.Join(l.Root, "meta.json") }
func (l Layout) Task() string        { return filepath.Join(l.Root, "task.md") }

// LegacyConversation is the conversation log written by older harness versions.
func (l Layout) LegacyConversation() string {
	return filepath.Join(l.Root, "conversation.json")
}

func (l Layout) SkillDir(name string) string {
	return filepath.Join(l.Skills(), name)
}

func (l Layout) SessionDir(id string) string {
	return filepath.Join(l.SessionRoot(), id)
}

// excluded reports whether a directory under the run belongs to the skills
// source rather than to agent output.
func (l Layout) excluded(path string) bool {
	return path == l.SkillsRepo() || path == l.Skills() || path == l.SessionRoot()
}
