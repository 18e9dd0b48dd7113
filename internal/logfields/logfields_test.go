package logfields

import (
	"errors"
	"testing"
	"time"
)

func TestHelpers(t *testing.T) {
	cases := []struct {
		got     string
		wantKey string
	}{
		{RunID("r1").Key, KeyRunID},
		{Pipeline("build").Key, KeyPipeline},
		{Phase("generate").Key, KeyPhase},
		{Task("html").Key, KeyTask},
		{Adapter("sass").Key, KeyAdapter},
		{Path("src/index.html").Key, KeyPath},
		{Dest("dest/index.html").Key, KeyDest},
		{Rule("styles").Key, KeyRule},
		{Files(3).Key, KeyFiles},
		{Duration(time.Second).Key, KeyDurationMS},
	}
	for _, c := range cases {
		if c.got != c.wantKey {
			t.Fatalf("expected key %s got %s", c.wantKey, c.got)
		}
	}
	if Duration(1500*time.Millisecond).Value.Int64() != 1500 {
		t.Fatalf("duration should be reported in milliseconds")
	}
}

func TestErrorAttr(t *testing.T) {
	if v := Error(nil).Value.String(); v != "" {
		t.Fatalf("nil error should render empty, got %q", v)
	}
	if v := Error(errors.New("boom")).Value.String(); v != "boom" {
		t.Fatalf("unexpected error value %q", v)
	}
}
