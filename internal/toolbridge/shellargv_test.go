package toolbridge

import (
	"reflect"
	"testing"
)

func TestRewriteShellArgvNoopWithoutMetaOperator(t *testing.T) {
	argv := []string{"ls", "-la", "/tmp"}

	got, changed := RewriteShellArgv(argv)
	if changed {
		t.Fatal("expected no rewrite for a plain argv")
	}

	if !reflect.DeepEqual(got, argv) {
		t.Fatalf("got %v, want unchanged %v", got, argv)
	}
}

func TestRewriteShellArgvRewritesPipeline(t *testing.T) {
	argv := []string{"cat", "file.txt", "|", "grep", "foo"}

	got, changed := RewriteShellArgv(argv)
	if !changed {
		t.Fatal("expected rewrite for argv containing a pipe")
	}

	if len(got) != 3 || got[0] != "bash" || got[1] != "-lc" {
		t.Fatalf("unexpected rewritten argv: %v", got)
	}
}

func TestRewriteShellArgvAlreadyRewrittenIsNoop(t *testing.T) {
	argv := []string{"bash", "-lc", "cat file.txt | grep foo"}

	got, changed := RewriteShellArgv(argv)
	if changed {
		t.Fatal("expected no further rewrite when already in bash -lc form")
	}

	if !reflect.DeepEqual(got, argv) {
		t.Fatalf("got %v, want unchanged %v", got, argv)
	}
}

func TestRewriteShellArgvEmpty(t *testing.T) {
	got, changed := RewriteShellArgv(nil)
	if changed || got != nil {
		t.Fatalf("expected no-op for empty argv, got %v changed=%v", got, changed)
	}
}
