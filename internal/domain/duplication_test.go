package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vibeheal/vibeheal/internal/domain"
)

func TestDuplicationGroup_BlockAndOthers(t *testing.T) {
	g := domain.DuplicationGroup{Blocks: []domain.DuplicationBlock{
		{Ref: "1", From: 10, Size: 5},
		{Ref: "2", From: 3, Size: 5},
		{Ref: "3", From: 7, Size: 5},
	}}

	b, ok := g.Block("2")
	assert.True(t, ok)
	assert.Equal(t, 3, b.From)
	assert.Equal(t, 7, b.To())

	_, ok = g.Block("9")
	assert.False(t, ok)
	assert.Len(t, g.Others("1"), 2)
}

func TestDuplications_RefForAndLocation(t *testing.T) {
	d := &domain.Duplications{Files: map[string]domain.DuplicationFile{
		"1": {Key: "p:a.py"},
		"2": {Key: "p:b.py"},
	}}
	assert.Equal(t, "2", d.RefFor("p:b.py"))
	assert.Equal(t, "2", d.RefFor("P:b.py"))
	assert.Empty(t, d.RefFor("p:c.py"))
	assert.Equal(t, "p:a.py (lines 4-9)", d.Location(domain.DuplicationBlock{Ref: "1", From: 4, Size: 6}))
	assert.Equal(t, "7 (lines 1-1)", d.Location(domain.DuplicationBlock{Ref: "7", From: 1, Size: 1}))

	var missing *domain.Duplications
	assert.Empty(t, missing.RefFor("p:a.py"))
}

func TestDuplicationCommitMessage(t *testing.T) {
	msg := domain.DuplicationCommitMessage(domain.DuplicationBlock{From: 12, Size: 10}, 3, "Claude Code", 2)
	lines := strings.Split(msg, "\n")

	assert.Equal(t, "refactor: [duplication] remove duplicate code at line 12", lines[0])
	assert.Empty(t, lines[1])
	assert.Contains(t, msg, "spanning lines 12-21 (10 lines)")
	assert.Contains(t, msg, "duplicated in 3 location(s)")
	assert.Contains(t, msg, "Files modified: 2")
	assert.True(t, strings.HasSuffix(msg, "Fixed by: vibeheal using Claude Code\n"))

	single := domain.DuplicationCommitMessage(domain.DuplicationBlock{From: 1, Size: 2}, 2, "Aider", 1)
	assert.NotContains(t, single, "Files modified")
}
