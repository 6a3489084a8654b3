package services

import (
	"github.com/fatih/color"
)

// Printer writes per-item status lines to the console. Batch jobs running
// in server mode pass Quiet to suppress interleaved output.
type Printer struct {
	Quiet bool
}

// NewPrinter creates a console printer.
func NewPrinter() *Printer {
	return &Printer{}
}

// Success prints a green [SUCCESS] line.
func (p *Printer) Success(format string, args ...interface{}) {
	if p == nil || p.Quiet {
		return
	}
	color.Green("[SUCCESS] "+format, args...)
}

// Err prints a red [ERR] line.
func (p *Printer) Err(format string, args ...interface{}) {
	if p == nil || p.Quiet {
		return
	}
	color.Red("[ERR] "+format, args...)
}

// Info prints a blue [INFO] line.
func (p *Printer) Info(format string, args ...interface{}) {
	if p == nil || p.Quiet {
		return
	}
	color.Blue("[INFO] "+format, args...)
}

// Warn prints a yellow [WARN] line.
func (p *Printer) Warn(format string, args ...interface{}) {
	if p == nil || p.Quiet {
		return
	}
	color.Yellow("[WARN] "+format, args...)
}
