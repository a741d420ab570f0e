package main

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestBuildInfo(t *testing.T) {
	t.Parallel()

	if v := getVersion(); v == "" {
		t.Error("getVersion() returned empty string")
	}
	if c := getCommit(); c == "" || len(c) > shortCommitLen && c != "unknown" {
		t.Errorf("getCommit() = %q, want a short revision or unknown", c)
	}
	if d := getDate(); d == "" {
		t.Error("getDate() returned empty string")
	}
}

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, args ...string) string {
		t.Helper()
		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs(args)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return buf.String()
	}

	t.Run("full output", func(t *testing.T) {
		t.Parallel()
		output := run(t)
		for _, want := range []string{"sitegrab " + getVersion(), "commit:", "built:", runtime.Version()} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got %q", want, output)
			}
		}
	})

	t.Run("short output", func(t *testing.T) {
		t.Parallel()
		if output := run(t, "--short"); output != getVersion()+"\n" {
			t.Errorf("expected only the version, got %q", output)
		}
	})
}
