package extract

import "fmt"

// BitPosition names which bit plane a selector reads.
type BitPosition string

const (
	// LSB reads plane 0, the least significant bit of each 8-bit sample.
	LSB BitPosition = "lsb"
	// MSB reads plane 7.
	MSB BitPosition = "msb"
)

// Selector identifies one candidate extraction strategy: the channel set,
// the bit plane, and the traversal order. Combined selectors ("rgb",
// "rgba") interleave one bit per channel per pixel; single-channel
// selectors walk one plane. Traversal is always row-major.
type Selector struct {
	Channels string
	Bit      BitPosition
}

// String renders the selector in zsteg notation, e.g. "b1,r,lsb,xy".
func (s Selector) String() string {
	return fmt.Sprintf("b1,%s,%s,xy", s.Channels, s.Bit)
}

// Plane returns the bit index the selector reads.
func (s Selector) Plane() uint {
	if s.Bit == MSB {
		return 7
	}
	return 0
}

// Priority is the fixed, documented selector order. Single-channel LSB
// planes come first (the most common embedding), then combined planes, then
// the MSB variants. The first RECOVERED attempt in this order becomes the
// report headline; every attempt is retained regardless.
var Priority = []Selector{
	{Channels: "r", Bit: LSB},
	{Channels: "g", Bit: LSB},
	{Channels: "b", Bit: LSB},
	{Channels: "rgb", Bit: LSB},
	{Channels: "a", Bit: LSB},
	{Channels: "rgba", Bit: LSB},
	{Channels: "r", Bit: MSB},
	{Channels: "g", Bit: MSB},
	{Channels: "b", Bit: MSB},
	{Channels: "rgb", Bit: MSB},
}
