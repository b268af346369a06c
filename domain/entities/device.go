package entities

// DeviceCategory classifies what a device controls and which scalar value,
// if any, it understands.
type DeviceCategory string

const (
	CategoryLight     DeviceCategory = "light"
	CategoryClimate   DeviceCategory = "climate"
	CategoryShading   DeviceCategory = "shading"
	CategoryAppliance DeviceCategory = "appliance"
)

// HasValue reports whether devices of this category carry a scalar value
// (brightness, temperature, openness). Generic appliances are on/off only.
func (c DeviceCategory) HasValue() bool {
	switch c {
	case CategoryLight, CategoryClimate, CategoryShading:
		return true
	default:
		return false
	}
}

// Device represents a single controllable home device. ID, Name, Category and
// Room are fixed at creation; only IsOn and Value change over a device's life.
type Device struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	Category DeviceCategory `json:"category" yaml:"category"`
	Room     string         `json:"room" yaml:"room"`
	IsOn     bool           `json:"is_on" yaml:"is_on"`
	// Value is the category-dependent scalar: brightness for lights, target
	// temperature for climate, openness for shading. Nil for categories that
	// do not define one.
	Value *float64 `json:"value,omitempty" yaml:"value,omitempty"`
}

// ValueLabel names what Value means for this device's category, for use in
// prompts and user-facing messages.
func (d Device) ValueLabel() string {
	switch d.Category {
	case CategoryLight:
		return "brilho"
	case CategoryClimate:
		return "temperatura"
	case CategoryShading:
		return "abertura"
	default:
		return "valor"
	}
}
