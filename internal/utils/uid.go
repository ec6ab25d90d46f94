// Package utils holds small helpers shared across the gateway.
package utils

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// UIDGenerator derives stable, readable ids from component names and resolves
// collisions. A generated id looks like "<slug>-<hash>" (or "<slug>-<hash>-N"
// when the same name appears more than once).
type UIDGenerator struct {
	used    map[string]struct{}
	counter map[string]int
}

// NewUIDGenerator creates a generator with optional pre-reserved ids.
func NewUIDGenerator(existing ...string) *UIDGenerator {
	g := &UIDGenerator{
		used:    make(map[string]struct{}, len(existing)+8),
		counter: make(map[string]int, len(existing)+8),
	}
	for _, uid := range existing {
		uid = strings.TrimSpace(uid)
		if uid == "" {
			continue
		}
		g.used[uid] = struct{}{}
	}
	return g
}

// Generate returns a unique id for name.
func (g *UIDGenerator) Generate(name string) string {
	if g == nil {
		g = NewUIDGenerator()
	}
	base := baseUID(name)
	if _, ok := g.used[base]; !ok {
		g.used[base] = struct{}{}
		g.counter[base] = 1
		return base
	}
	n := g.counter[base]
	if n < 1 {
		n = 1
	}
	for {
		n++
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, exists := g.used[candidate]; exists {
			continue
		}
		g.used[candidate] = struct{}{}
		g.counter[base] = n
		return candidate
	}
}

func baseUID(name string) string {
	name = strings.TrimSpace(name)
	slug := slugifyASCII(name)
	if slug == "" {
		slug = "component"
	}
	return fmt.Sprintf("%s-%s", slug, shortHashHex(name))
}

func shortHashHex(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	sum := h.Sum64()
	return fmt.Sprintf("%08x", uint32(sum&0xffffffff))
}

func slugifyASCII(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return ""
	}
	return out
}
