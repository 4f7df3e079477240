//go:build rp2040 || rp2350

package main

import (
	"machine"
)

var debugUART *machine.UART

// InitDebugUART starts UART1 on GPIO4 (TX) and GPIO5 (RX) at 115200 baud
// so debug output does not share the USB link with the protocol
func InitDebugUART() bool {
	uart := machine.UART1
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO4,
		RX:       machine.GPIO5,
	})
	if err != nil {
		return false
	}
	debugUART = uart
	DebugPrintln("=== Wavescope debug UART ===")
	return true
}

// DebugPrintln writes a line to the debug UART
func DebugPrintln(s string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
