package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	chdir(t, t.TempDir())
	root := rootCMD()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	return root.Execute()
}

func TestCommandsRegistered(t *testing.T) {
	root := rootCMD()
	for _, name := range []string{"serve", "migrate", "ingest"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %s not registered: %v", name, err)
		}
	}
}

func TestIngestRequiresFile(t *testing.T) {
	if err := run(t, "ingest"); err == nil {
		t.Fatalf("expected missing argument error")
	}
}

func TestIngestRejectsBadJobID(t *testing.T) {
	err := run(t, "ingest", "--job", "not-a-uuid", "analysis.json")
	if err == nil || !strings.Contains(err.Error(), "invalid --job id") {
		t.Fatalf("expected job id error, got %v", err)
	}
}

func TestIngestMissingFile(t *testing.T) {
	if err := run(t, "ingest", "does-not-exist.json"); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	err := run(t, "migrate", "--direction", "sideways", "--dir", "file://nowhere")
	if err == nil {
		t.Fatalf("expected error")
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
