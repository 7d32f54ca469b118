package secret

import (
	"strings"
	"testing"
)

func TestExpandEnvStrict_ExpandsPresentVars(t *testing.T) {
	t.Setenv("KNOWCACHE_BASE", "https://knowledge.internal")

	out, err := ExpandEnvStrict("${KNOWCACHE_BASE}/v1")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if out != "https://knowledge.internal/v1" {
		t.Fatalf("ExpandEnvStrict() = %q, want %q", out, "https://knowledge.internal/v1")
	}
}

func TestExpandEnvStrict_MissingVarErrors(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	_, err := ExpandEnvStrict("a=${PRESENT} b=${MISSING}")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "MISSING") {
		t.Fatalf("expected missing var name in error, got: %v", err)
	}
}

func TestExpandEnvStrict_DollarEscape(t *testing.T) {
	t.Setenv("X", "y")

	out, err := ExpandEnvStrict("$$${X}")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if out != "$y" {
		t.Fatalf("ExpandEnvStrict() = %q, want %q", out, "$y")
	}
}

func TestExpandEnvStrict_BareVarIsNotStrict(t *testing.T) {
	t.Setenv("BARE", "set")

	out, err := ExpandEnvStrict("$BARE/$UNSET_BARE_VAR/end")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if out != "set//end" {
		t.Fatalf("ExpandEnvStrict() = %q, want %q", out, "set//end")
	}
}

func TestExpandEnvStrict_DoesNotReExpandValues(t *testing.T) {
	t.Setenv("OUTER", "$INNER")
	t.Setenv("INNER", "surprise")

	out, err := ExpandEnvStrict("${OUTER}")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if out != "$INNER" {
		t.Fatalf("ExpandEnvStrict() = %q, want %q", out, "$INNER")
	}
}

func TestExpandEnvStrict_ReportsAllMissingSorted(t *testing.T) {
	_, err := ExpandEnvStrict("${ZED_MISSING} ${ALPHA_MISSING}")
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "ALPHA_MISSING, ZED_MISSING") {
		t.Fatalf("expected sorted missing vars, got: %v", err)
	}
}
