package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tallybook/internal/domain/ledger"
)

func writeEnginesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engines.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write engines file: %v", err)
	}
	return path
}

const twoEngines = `
[[engines]]
id = "quality"
enabled = true
owned_tables = ["evidence_records"]
routes = ["/evidence"]

[[engines]]
id = "lineage"
enabled = false
`

func TestLoadFileReadsSwitchPositions(t *testing.T) {
	path := writeEnginesFile(t, twoEngines)

	reg, err := LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if !reg.Enabled("quality") {
		t.Fatalf("quality should be enabled")
	}
	if reg.Enabled("lineage") {
		t.Fatalf("lineage should be disabled")
	}
	if reg.Enabled("unlisted") {
		t.Fatalf("unlisted engine should read as disabled")
	}
}

func TestRequireEnabledDistinguishesUnknownFromDisabled(t *testing.T) {
	reg, err := LoadFile(context.Background(), writeEnginesFile(t, twoEngines))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if err := reg.RequireEnabled("quality"); err != nil {
		t.Fatalf("RequireEnabled(quality) error = %v", err)
	}
	if err := reg.RequireEnabled("lineage"); !errors.Is(err, ledger.ErrEngineDisabled) {
		t.Fatalf("RequireEnabled(lineage) error = %v, want ErrEngineDisabled", err)
	}
	if err := reg.RequireEnabled("unlisted"); !errors.Is(err, ledger.ErrEngineUnknown) {
		t.Fatalf("RequireEnabled(unlisted) error = %v, want ErrEngineUnknown", err)
	}
}

func TestSetEnabledTogglesOneEngineOnly(t *testing.T) {
	reg, err := LoadFile(context.Background(), writeEnginesFile(t, twoEngines))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if err := reg.SetEnabled("quality", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if reg.Enabled("quality") {
		t.Fatalf("quality should be disabled after toggle")
	}
	if reg.Enabled("lineage") {
		t.Fatalf("lineage flipped by a quality toggle")
	}

	if err := reg.SetEnabled("lineage", true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if !reg.Enabled("lineage") || reg.Enabled("quality") {
		t.Fatalf("toggles interfere: quality=%v lineage=%v", reg.Enabled("quality"), reg.Enabled("lineage"))
	}

	if err := reg.SetEnabled("unlisted", true); !errors.Is(err, ledger.ErrEngineUnknown) {
		t.Fatalf("SetEnabled(unlisted) error = %v, want ErrEngineUnknown", err)
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New([]EngineSpec{{ID: "quality"}, {ID: "quality"}})
	if !errors.Is(err, ledger.ErrConfiguration) {
		t.Fatalf("New() error = %v, want ErrConfiguration", err)
	}
}

func TestOwnsTable(t *testing.T) {
	reg, err := LoadFile(context.Background(), writeEnginesFile(t, twoEngines))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if !reg.OwnsTable("quality", "evidence_records") {
		t.Fatalf("quality should own evidence_records")
	}
	if reg.OwnsTable("quality", "audit_entries") {
		t.Fatalf("quality must not own audit_entries")
	}
	if reg.OwnsTable("unlisted", "evidence_records") {
		t.Fatalf("unknown engine owns nothing")
	}
}

func TestReloadSwapsWholeSet(t *testing.T) {
	path := writeEnginesFile(t, twoEngines)
	reg, err := LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	next := `
[[engines]]
id = "quality"
enabled = false
`
	if err := os.WriteFile(path, []byte(next), 0o644); err != nil {
		t.Fatalf("rewrite engines file: %v", err)
	}
	if err := reg.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if reg.Enabled("quality") {
		t.Fatalf("quality should be disabled after reload")
	}
	// Removed from the file means disabled by absence.
	if err := reg.RequireEnabled("lineage"); !errors.Is(err, ledger.ErrEngineUnknown) {
		t.Fatalf("RequireEnabled(lineage) after reload error = %v, want ErrEngineUnknown", err)
	}
}

func TestReloadKeepsPreviousSetOnBadFile(t *testing.T) {
	path := writeEnginesFile(t, twoEngines)
	reg, err := LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if err := os.WriteFile(path, []byte(`not toml [[`), 0o644); err != nil {
		t.Fatalf("rewrite engines file: %v", err)
	}
	if err := reg.Reload(context.Background()); err == nil {
		t.Fatalf("Reload() expected parse error")
	}

	if !reg.Enabled("quality") {
		t.Fatalf("previous set lost after failed reload")
	}
}
