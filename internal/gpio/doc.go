// Package gpio manages hardware pins behind symbolic names.
//
// Pins are declared by name ("D4", "A0"), mode, and poll interval, either
// programmatically or from a server-pushed JSON configuration. Names are
// resolved to hardware pin numbers per board family; on NodeMCU the D
// labels do not match GPIO numbers, which is why resolution exists at all.
//
// Input pins are polled on a per-pin cadence and publish only when the
// value changes. Output pins accept smart writes: values 0 and 1 drive a
// digital level, 2 through 255 drive PWM duty, with the PWM channel
// attached lazily and detached again before a digital write.
//
// All hardware access goes through the Hardware capability interface.
// The Simulated implementation backs hosts without GPIO and is the seam
// used by tests.
//
// # Usage
//
//	hw := gpio.NewHardware("nodemcu")
//	table := gpio.NewTable(hw)
//	table.AddPin("D4", "OUTPUT", 0)
//	table.AddPin("A0", "ANALOG_INPUT", 500)
//
//	// from the main loop:
//	table.Poll(func(name string, value int) {
//	    fmt.Println(name, "=", value)
//	})
package gpio
