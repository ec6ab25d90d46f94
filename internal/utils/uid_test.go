package utils

import (
	"regexp"
	"testing"
)

func TestUIDGeneratorUniqueWithIncrement(t *testing.T) {
	g := NewUIDGenerator()

	first := g.Generate("Relay K1")
	second := g.Generate("Relay K1")
	third := g.Generate("Relay K1")

	if first == second || second == third || first == third {
		t.Fatalf("uids must be unique: %q %q %q", first, second, third)
	}
	if second != first+"-2" {
		t.Fatalf("expected second uid to increment: first=%q second=%q", first, second)
	}
	if third != first+"-3" {
		t.Fatalf("expected third uid to increment: first=%q third=%q", first, third)
	}
}

func TestUIDGeneratorUsesSlugAndHash(t *testing.T) {
	g := NewUIDGenerator()
	uid := g.Generate("Fuse/F1 #01")

	ok, err := regexp.MatchString(`^fuse-f1-01-[0-9a-f]{8}$`, uid)
	if err != nil {
		t.Fatalf("regex error: %v", err)
	}
	if !ok {
		t.Fatalf("unexpected uid format: %q", uid)
	}
}

func TestUIDGeneratorRespectsExistingUIDs(t *testing.T) {
	g := NewUIDGenerator("relay-aaaaaaaa")

	uid := g.Generate("relay")
	if uid == "relay-aaaaaaaa" {
		t.Fatalf("generated uid must avoid existing uid")
	}
}

func TestUIDGeneratorEmptyInputFallback(t *testing.T) {
	g := NewUIDGenerator()
	uid := g.Generate("   ")

	ok, err := regexp.MatchString(`^component-[0-9a-f]{8}$`, uid)
	if err != nil {
		t.Fatalf("regex error: %v", err)
	}
	if !ok {
		t.Fatalf("unexpected uid format: %q", uid)
	}
}
