package aitool

import (
	"encoding/json"
	"strings"
)

type toolUse struct {
	Name       string `json:"name"`
	Parameters struct {
		FilePath string `json:"file_path"`
	} `json:"parameters"`
}

// ParseClaudeFiles extracts the files touched by Edit or Write tool calls
// from Claude Code JSON output. It returns []string{fallback} when the
// output is not JSON or names no files.
func ParseClaudeFiles(output, fallback string) []string {
	var data struct {
		ToolUses []toolUse `json:"toolUses"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &data); err != nil {
		return []string{fallback}
	}
	return filesOrFallback(data.ToolUses, fallback, "Edit", "Write")
}

// ParseGeminiFiles does the same for Gemini CLI output, where the JSON
// document is the last line and tool calls are named edit and write_file.
func ParseGeminiFiles(output, fallback string) []string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	var data struct {
		ToolCode []toolUse `json:"tool_code"`
	}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &data); err != nil {
		return []string{fallback}
	}
	return filesOrFallback(data.ToolCode, fallback, "edit", "write_file")
}

func filesOrFallback(uses []toolUse, fallback string, names ...string) []string {
	seen := make(map[string]bool)
	var files []string
	for _, u := range uses {
		if u.Parameters.FilePath == "" || seen[u.Parameters.FilePath] {
			continue
		}
		for _, n := range names {
			if u.Name == n {
				seen[u.Parameters.FilePath] = true
				files = append(files, u.Parameters.FilePath)
				break
			}
		}
	}
	if len(files) == 0 {
		return []string{fallback}
	}
	return files
}
