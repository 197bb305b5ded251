package model

import "time"

// Point is one write-ready reading for one category on one date.
type Point struct {
	Measurement string
	Time        time.Time
	Fields      map[string]float64
	Unit        UnitSystem // Empty when the values are unit-less.
}
