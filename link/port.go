package link

import (
	"fmt"
	"reflect"
)

// Port names a stream of element type T.
type Port[T any] struct {
	Name string
}

// P declares a port.
func P[T any](name string) Port[T] { return Port[T]{Name: name} }

// Info returns the untyped description used in chunk declarations.
func (p Port[T]) Info() PortInfo {
	return PortInfo{Name: p.Name, Type: reflect.TypeFor[T]()}
}

func (p Port[T]) String() string { return p.Info().String() }

// PortInfo is a port name with its element type.
type PortInfo struct {
	Name string
	Type reflect.Type
}

func (p PortInfo) String() string { return fmt.Sprintf("%s(%v)", p.Name, p.Type) }

// Infos collects PortInfos from typed ports of any element type.
func Infos(ports ...interface{ Info() PortInfo }) []PortInfo {
	out := make([]PortInfo, len(ports))
	for i, p := range ports {
		out[i] = p.Info()
	}
	return out
}
