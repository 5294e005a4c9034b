// Package uniform holds the shared name->value table pushed to every pass.
package uniform

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/graphics"
)

// Kind identifies the variant carried by a Value.
type Kind int

const (
	KindFloat Kind = iota + 1
	KindInt
	KindVec2
	KindVec3
	KindVec4
	KindTexture
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindVec2:
		return "vec2"
	case KindVec3:
		return "vec3"
	case KindVec4:
		return "vec4"
	case KindTexture:
		return "sampler2D"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a closed set of uniform types. Only this package implements it.
type Value interface {
	Kind() Kind
	isValue()
}

type (
	Float   float32
	Int     int32
	Vec2    mgl32.Vec2
	Vec3    mgl32.Vec3
	Vec4    mgl32.Vec4
	Texture graphics.Texture
)

func (Float) Kind() Kind   { return KindFloat }
func (Int) Kind() Kind     { return KindInt }
func (Vec2) Kind() Kind    { return KindVec2 }
func (Vec3) Kind() Kind    { return KindVec3 }
func (Vec4) Kind() Kind    { return KindVec4 }
func (Texture) Kind() Kind { return KindTexture }

func (Float) isValue()   {}
func (Int) isValue()     {}
func (Vec2) isValue()    {}
func (Vec3) isValue()    {}
func (Vec4) isValue()    {}
func (Texture) isValue() {}

// Def declares a uniform and its initial value. The initial value fixes
// the kind for the lifetime of the table.
type Def struct {
	Name  string
	Value Value
}

// Apply uploads v at loc on the device's current program. Texture values
// are bound to unit and the sampler set to that unit.
func Apply(dev graphics.Device, loc int32, v Value, unit int) {
	if loc < 0 {
		return
	}
	switch v := v.(type) {
	case Float:
		dev.Uniform1f(loc, float32(v))
	case Int:
		dev.Uniform1i(loc, int32(v))
	case Vec2:
		dev.Uniform2f(loc, v[0], v[1])
	case Vec3:
		dev.Uniform3f(loc, v[0], v[1], v[2])
	case Vec4:
		dev.Uniform4f(loc, v[0], v[1], v[2], v[3])
	case Texture:
		dev.BindTexture(unit, graphics.Texture(v))
		dev.Uniform1i(loc, int32(unit))
	}
}

// Parse builds a Value of the named kind from raw numbers, as read from a
// config file. Texture uniforms cannot be declared this way.
func Parse(kind string, raw []float64) (Value, error) {
	need := map[string]int{"float": 1, "int": 1, "vec2": 2, "vec3": 3, "vec4": 4}
	n, ok := need[kind]
	if !ok {
		return nil, fmt.Errorf("unknown uniform type %q", kind)
	}
	if len(raw) != n {
		return nil, fmt.Errorf("uniform type %s needs %d values, got %d", kind, n, len(raw))
	}
	f := func(i int) float32 { return float32(raw[i]) }
	switch kind {
	case "float":
		return Float(f(0)), nil
	case "int":
		return Int(int32(raw[0])), nil
	case "vec2":
		return Vec2{f(0), f(1)}, nil
	case "vec3":
		return Vec3{f(0), f(1), f(2)}, nil
	default:
		return Vec4{f(0), f(1), f(2), f(3)}, nil
	}
}
