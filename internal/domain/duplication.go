package domain

import (
	"fmt"
	"strings"
)

// DuplicationBlock is one occurrence of duplicated code. Ref points into
// Duplications.Files.
type DuplicationBlock struct {
	From int    `json:"from"`
	Size int    `json:"size"`
	Ref  string `json:"_ref"`
}

// To returns the last line of the block, inclusive.
func (b DuplicationBlock) To() int { return b.From + b.Size - 1 }

// DuplicationFile describes a file taking part in a duplication.
type DuplicationFile struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ProjectName string `json:"projectName"`
}

// DuplicationGroup is a set of blocks that duplicate each other.
type DuplicationGroup struct {
	Blocks []DuplicationBlock `json:"blocks"`
}

// Block returns the first block of the group that lives in ref.
func (g DuplicationGroup) Block(ref string) (DuplicationBlock, bool) {
	for _, b := range g.Blocks {
		if b.Ref == ref {
			return b, true
		}
	}
	return DuplicationBlock{}, false
}

// Others returns the blocks that do not live in ref.
func (g DuplicationGroup) Others(ref string) []DuplicationBlock {
	var out []DuplicationBlock
	for _, b := range g.Blocks {
		if b.Ref != ref {
			out = append(out, b)
		}
	}
	return out
}

// Duplications is the duplication report of one file.
type Duplications struct {
	Groups []DuplicationGroup          `json:"duplications"`
	Files  map[string]DuplicationFile `json:"files"`
}

// RefFor returns the file reference whose component key equals
// componentKey, ignoring case, or "" when the file takes no part in any
// group.
func (d *Duplications) RefFor(componentKey string) string {
	if d == nil {
		return ""
	}
	for ref, f := range d.Files {
		if strings.EqualFold(f.Key, componentKey) {
			return ref
		}
	}
	return ""
}

// Location renders a block as "key (lines a-b)", falling back to the raw
// reference when the file is unknown.
func (d *Duplications) Location(b DuplicationBlock) string {
	name := b.Ref
	if d != nil {
		if f, ok := d.Files[b.Ref]; ok {
			name = f.Key
		}
	}
	return fmt.Sprintf("%s (lines %d-%d)", name, b.From, b.To())
}

// DuplicationPlan is the ordered set of groups to refactor in one file,
// highest starting line first.
type DuplicationPlan struct {
	Ref     string             `json:"ref,omitempty"`
	Groups  []DuplicationGroup `json:"groups"`
	Total   int                `json:"total"`
	InFile  int                `json:"in_file"`
	Skipped int                `json:"skipped"`
}

// Len returns the number of planned groups.
func (p DuplicationPlan) Len() int { return len(p.Groups) }

// DuplicationCommitMessage renders the message recorded for a removed
// duplication.
func DuplicationCommitMessage(block DuplicationBlock, locations int, toolName string, filesModified int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "refactor: [duplication] remove duplicate code at line %d\n\n", block.From)
	fmt.Fprintf(&b, "Refactored duplicate code block spanning lines %d-%d (%d lines).\n", block.From, block.To(), block.Size)
	fmt.Fprintf(&b, "This code was duplicated in %d location(s).\n", locations)
	if filesModified > 1 {
		fmt.Fprintf(&b, "Files modified: %d\n", filesModified)
	}
	fmt.Fprintf(&b, "\nFixed by: vibeheal using %s\n", toolName)
	return b.String()
}
