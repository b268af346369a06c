package devices

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vozcasa/vozcasa/domain/entities"
)

// Load returns the device set for this home: the YAML file at path when
// given, otherwise the built-in defaults.
func Load(path string) ([]entities.Device, error) {
	if path == "" {
		return Defaults(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a YAML device list. The file must contain at least one
// device and every device needs an id and a name.
func LoadFile(path string) ([]entities.Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read devices file: %w", err)
	}

	var doc struct {
		Devices []entities.Device `yaml:"devices"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse devices file %s: %w", path, err)
	}
	if len(doc.Devices) == 0 {
		return nil, fmt.Errorf("devices file %s declares no devices", path)
	}
	for i, device := range doc.Devices {
		if device.ID == "" || device.Name == "" {
			return nil, fmt.Errorf("devices file %s: device %d is missing an id or name", path, i)
		}
	}
	return doc.Devices, nil
}

// Defaults is the built-in device set used when no file is configured.
func Defaults() []entities.Device {
	brightness := 70.0
	temperature := 23.0
	opening := 100.0
	return []entities.Device{
		{ID: "luz-sala", Name: "Luz da Sala", Category: entities.CategoryLight, Room: "Sala", IsOn: true, Value: &brightness},
		{ID: "luz-quarto", Name: "Luz do Quarto", Category: entities.CategoryLight, Room: "Quarto"},
		{ID: "luz-cozinha", Name: "Luz da Cozinha", Category: entities.CategoryLight, Room: "Cozinha"},
		{ID: "ar-quarto", Name: "Ar Condicionado do Quarto", Category: entities.CategoryClimate, Room: "Quarto", Value: &temperature},
		{ID: "cortina-sala", Name: "Cortina da Sala", Category: entities.CategoryShading, Room: "Sala", IsOn: true, Value: &opening},
		{ID: "cafeteira", Name: "Cafeteira", Category: entities.CategoryAppliance, Room: "Cozinha"},
	}
}
