package render

var (
	blockPalette = []rune(" ▁▂▃▄▅▆▇█")
	shadePalette = []rune("  ░░▒▒▓▓█")
	asciiPalette = []rune(" ..::=+*#")
)

// Palette returns the nine glyphs used for a cell filled 0/8 to 8/8.
func Palette(name string) []rune {
	switch name {
	case "shade":
		return shadePalette
	case "ascii":
		return asciiPalette
	default:
		return blockPalette
	}
}

// PaletteNames returns all palette identifiers.
func PaletteNames() []string {
	return []string{"blocks", "shade", "ascii"}
}
