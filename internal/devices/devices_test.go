package devices

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vozcasa/vozcasa/domain/entities"
)

func TestDefaultsAreWellFormed(t *testing.T) {
	defaults := Defaults()
	if len(defaults) == 0 {
		t.Fatal("no default devices")
	}
	seen := map[string]bool{}
	for _, device := range defaults {
		if device.ID == "" || device.Name == "" {
			t.Errorf("device %+v is missing an id or name", device)
		}
		if seen[device.ID] {
			t.Errorf("duplicate device id %q", device.ID)
		}
		seen[device.ID] = true
		if device.Category.HasValue() && device.Value == nil {
			continue // a value-capable device may start unset
		}
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	devices, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if len(devices) != len(Defaults()) {
		t.Errorf("got %d devices, want the %d defaults", len(devices), len(Defaults()))
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	content := `devices:
  - id: luz-escritorio
    name: Luz do Escritório
    category: light
    room: Escritório
    is_on: true
    value: 40
  - id: ventilador
    name: Ventilador
    category: appliance
    room: Quarto
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	devices, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	first := devices[0]
	if first.ID != "luz-escritorio" || first.Name != "Luz do Escritório" {
		t.Errorf("first device = %+v", first)
	}
	if first.Category != entities.CategoryLight || !first.IsOn {
		t.Errorf("first device state = %+v", first)
	}
	if first.Value == nil || *first.Value != 40 {
		t.Errorf("first device value = %v, want 40", first.Value)
	}
	if devices[1].Value != nil {
		t.Errorf("second device value = %v, want unset", devices[1].Value)
	}
}

func TestLoadFileRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"empty list", "devices: []\n"},
		{"missing id", "devices:\n  - name: Luz\n"},
		{"missing name", "devices:\n  - id: luz\n"},
		{"not yaml", "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Error("LoadFile() accepted bad input")
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile() succeeded on a missing file")
	}
}
