package sshserver

import "github.com/cespare/xxhash/v2"

const colorReset = "\033[0m"

// ColorPicker chooses the display color for a sender name.
type ColorPicker interface {
	Pick(name string) string
}

var defaultColorPalette = []string{
	"\033[31m", // Red
	"\033[32m", // Green
	"\033[33m", // Yellow
	"\033[34m", // Blue
	"\033[35m", // Magenta
	"\033[36m", // Cyan
}

// hashColorPicker maps each name to a fixed palette entry, so a sender keeps
// the same color across lines and across terminals.
type hashColorPicker struct {
	palette []string
}

func newHashColorPicker(palette []string) ColorPicker {
	if len(palette) == 0 {
		return nil
	}
	return &hashColorPicker{palette: append([]string(nil), palette...)}
}

func (p *hashColorPicker) Pick(name string) string {
	return p.palette[xxhash.Sum64String(name)%uint64(len(p.palette))]
}
