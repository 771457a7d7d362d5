package service

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
)

func TestPrompt(t *testing.T) {
	ctx := context.Background()
	for input, expected := range map[string]bool{
		"y\n":            true,
		"YES\n":          true,
		"maybe\n no\n":   false,
		"\nperhaps\ny\n": true,
		"":               false,
	} {
		out := &bytes.Buffer{}
		p := &Prompt{In: strings.NewReader(input), Out: out}
		if answer := p.Confirm(ctx, "Continue?"); answer != expected {
			t.Errorf("%q: expected %v, got %v", input, expected, answer)
		}
		if !strings.HasPrefix(out.String(), "Continue? (y/n) ") {
			t.Errorf("%q: unexpected prompt %q", input, out.String())
		}
		if strings.HasPrefix(input, "maybe") && !strings.Contains(out.String(), "maybe is not a valid answer!") {
			t.Errorf("%q: invalid answer not reported: %q", input, out.String())
		}
	}
}

func TestPromptSequence(t *testing.T) {
	ctx := context.Background()
	p := &Prompt{In: strings.NewReader("y\nbad\nn\ny\n"), Out: &bytes.Buffer{}}
	for i, expected := range []bool{true, false, true, false} {
		if answer := p.Confirm(ctx, "Continue?"); answer != expected {
			t.Errorf("question %d: expected %v, got %v", i, expected, answer)
		}
	}
}

func TestSetupProject(t *testing.T) {
	dir := t.TempDir()
	if err := SetupProject(dir); err != nil {
		t.Fatal(err)
	}
	s := Settings{ProjectDirectory: dir, DataDirectory: dir + "/data"}
	for _, d := range []string{s.Level1Dir(""), s.Level2Dir(""), s.MetaDir(), s.MiscDir("aoi"), s.MiscDir("dem"),
		s.ManagementDir("settings", "force"), s.ManagementDir("settings", "odc"), s.ManagementDir("singularity")} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Errorf("%s not created", d)
		}
	}
}
