package commands

import (
	"reflect"
	"testing"

	"github.com/aidanlsb/kb/internal/capability"
)

// TestRegistryHasRequiredCommands verifies that the six KB commands exist.
func TestRegistryHasRequiredCommands(t *testing.T) {
	requiredCommands := []string{"search", "index", "auto-sync", "stats", "validate", "export"}

	for _, cmd := range requiredCommands {
		meta, ok := Registry[cmd]
		if !ok {
			t.Errorf("Registry missing required command %q", cmd)
			continue
		}
		if !meta.NeedsKB {
			t.Errorf("%q should need a KB", cmd)
		}
	}
	if len(Registry) != len(requiredCommands)+1 {
		t.Errorf("Registry has %d commands, want %d plus version", len(Registry), len(requiredCommands))
	}
}

// TestRegistryMetadataComplete verifies all commands have required metadata.
func TestRegistryMetadataComplete(t *testing.T) {
	for name, meta := range Registry {
		t.Run(name, func(t *testing.T) {
			if meta.Name != name {
				t.Errorf("Name = %q, want %q", meta.Name, name)
			}
			if meta.Description == "" {
				t.Error("Command has empty Description")
			}
			for i, arg := range meta.Args {
				if arg.Name == "" {
					t.Errorf("Arg %d has empty Name", i)
				}
				if arg.Description == "" {
					t.Errorf("Arg %q has empty Description", arg.Name)
				}
			}
			for i, flag := range meta.Flags {
				if flag.Name == "" {
					t.Errorf("Flag %d has empty Name", i)
				}
				if flag.Description == "" {
					t.Errorf("Flag %q has empty Description", flag.Name)
				}
				if flag.Type == "" {
					t.Errorf("Flag %q has empty Type", flag.Name)
				}
			}
		})
	}
}

func TestCapabilityPolicy(t *testing.T) {
	tests := []struct {
		name     string
		requires []capability.Name
	}{
		{"search", []capability.Name{capability.Metadata}},
		{"index", []capability.Name{capability.Metadata}},
		{"auto-sync", []capability.Name{capability.Metadata, capability.Changes}},
		{"stats", nil},
		{"validate", []capability.Name{capability.Metadata}},
		{"export", []capability.Name{capability.Metadata}},
		{"version", nil},
	}
	for _, tt := range tests {
		if got := Registry[tt.name].Requires; !reflect.DeepEqual(got, tt.requires) {
			t.Errorf("%s Requires = %v, want %v", tt.name, got, tt.requires)
		}
	}
}

func TestResolveCommandID(t *testing.T) {
	tests := []struct {
		path   string
		wantID string
		wantOK bool
	}{
		{path: "search", wantID: "search", wantOK: true},
		{path: "kb auto-sync", wantID: "auto-sync", wantOK: true},
		{path: "kb", wantID: "", wantOK: false},
		{path: "", wantID: "", wantOK: false},
	}
	for _, tt := range tests {
		gotID, gotOK := ResolveCommandID(tt.path)
		if gotOK != tt.wantOK || gotID != tt.wantID {
			t.Fatalf("ResolveCommandID(%q) = (%q, %v), want (%q, %v)", tt.path, gotID, gotOK, tt.wantID, tt.wantOK)
		}
	}
}
