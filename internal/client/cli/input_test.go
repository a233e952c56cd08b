package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestGetSimpleText_TrimsAndPrompts(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("  alice  \n"))

	got, err := GetSimpleText(r, "Enter username", &out)
	if err != nil {
		t.Fatalf("GetSimpleText err: %v", err)
	}
	if got != "alice" {
		t.Fatalf("value mismatch: %q", got)
	}
	if !strings.Contains(out.String(), "Enter username") {
		t.Fatalf("prompt missing: %q", out.String())
	}
}

func TestGetSimpleText_PartialLineOnEOF(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("bob"))

	got, err := GetSimpleText(r, "Enter username", &out)
	if err != nil {
		t.Fatalf("GetSimpleText err: %v", err)
	}
	if got != "bob" {
		t.Fatalf("value mismatch: %q", got)
	}
}

func TestGetSimpleText_EOFWithoutInput(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader(""))

	if _, err := GetSimpleText(r, "Enter username", &out); err == nil {
		t.Fatalf("want error on empty EOF")
	}
}

func TestGetPassword_UsesSeam(t *testing.T) {
	orig := readPassword
	readPassword = func(fd int) ([]byte, error) { return []byte("sekret"), nil }
	t.Cleanup(func() { readPassword = orig })

	var out bytes.Buffer
	pw, err := GetPassword(&out)
	if err != nil {
		t.Fatalf("GetPassword err: %v", err)
	}
	if string(pw) != "sekret" {
		t.Fatalf("password mismatch: %q", pw)
	}
	if !strings.Contains(out.String(), "Enter password") {
		t.Fatalf("prompt missing: %q", out.String())
	}
}
