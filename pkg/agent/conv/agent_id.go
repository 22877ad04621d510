// Package conv defines the data model shared by every component of the
// agentic conversation runtime: messages, content blocks, conversation
// state, tool settings, loop state, and the hierarchical AgentId.
package conv

import (
	"crypto/rand"
	"strings"
)

const (
	agentIDSuffix       = '|'
	agentIDRandSep      = '#'
	agentIDRandAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	agentIDRandLen      = 5
)

// AgentId is the hierarchical identifier format "parent|name#rand". '|'
// separates a parent id from a child name; '#' prefixes a random suffix.
// Neither character is valid inside a name, which is what makes round-trip
// parsing unambiguous.
type AgentId struct {
	Name     string
	ParentID *string
	Rand     *string
}

// NewAgentId creates a fresh, randomly-suffixed top-level AgentId.
func NewAgentId(name string) AgentId {
	r := randomAlphanumeric(agentIDRandLen)
	return AgentId{Name: name, Rand: &r}
}

// NewChildAgentId creates an AgentId whose parent is the string form of
// parent and whose name is the given name, with no random suffix.
func NewChildAgentId(parent AgentId, name string) AgentId {
	p := parent.String()
	return AgentId{Name: name, ParentID: &p}
}

// String renders the canonical textual form of the id.
func (a AgentId) String() string {
	var b strings.Builder
	if a.ParentID != nil {
		b.WriteString(*a.ParentID)
		b.WriteByte(agentIDSuffix)
	}
	b.WriteString(a.Name)
	if a.Rand != nil {
		b.WriteByte(agentIDRandSep)
		b.WriteString(*a.Rand)
	}
	return b.String()
}

// ParseAgentId recovers an AgentId from its textual form. It is the inverse
// of String: ParseAgentId(a.String()) == a for every AgentId a.
func ParseAgentId(s string) AgentId {
	var parentEnd = -1
	if i := strings.LastIndexByte(s, agentIDSuffix); i >= 0 {
		parentEnd = i
	}

	var randStart = -1
	if j := strings.LastIndexByte(s, agentIDRandSep); j >= 0 {
		if parentEnd >= 0 {
			if j > parentEnd {
				randStart = j
			}
		} else {
			randStart = j
		}
	}

	var name string
	switch {
	case parentEnd < 0 && randStart < 0:
		name = s
	case parentEnd < 0 && randStart >= 0:
		name = s[:randStart]
	case parentEnd >= 0 && randStart < 0:
		name = s[parentEnd+1:]
	default:
		rest := s[parentEnd+1:]
		cut := randStart - parentEnd - 1
		if cut < 0 {
			cut = 0
		}
		name = rest[:cut]
	}

	var parentID, randPart *string
	if parentEnd >= 0 {
		v := s[:parentEnd]
		parentID = &v
	}
	if randStart >= 0 {
		v := s[randStart+1:]
		randPart = &v
	}
	return AgentId{Name: name, ParentID: parentID, Rand: randPart}
}

func randomAlphanumeric(n int) string {
	buf := make([]byte, n)
	idx := make([]byte, n)
	if _, err := rand.Read(idx); err != nil {
		// crypto/rand failing is a system-level problem; fall back to a
		// fixed sequence rather than panicking mid-conversation.
		for i := range idx {
			idx[i] = byte(i)
		}
	}
	for i, b := range idx {
		buf[i] = agentIDRandAlphabet[int(b)%len(agentIDRandAlphabet)]
	}
	return string(buf)
}
