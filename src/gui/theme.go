package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// accentBase is the capture accent, the same blue the overlay border and
// the tray glyph use.
var accentBase = colorful.Color{R: 0.0, G: 120.0 / 255.0, B: 212.0 / 255.0}

// appTheme tints the stock theme with the accent and optionally forces a
// variant. "system" keeps whatever the OS asked for.
type appTheme struct {
	variant fyne.ThemeVariant
	forced  bool
}

func newTheme(setting string) *appTheme {
	switch setting {
	case "dark":
		return &appTheme{variant: theme.VariantDark, forced: true}
	case "light":
		return &appTheme{variant: theme.VariantLight, forced: true}
	}
	return &appTheme{}
}

func (t *appTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	if t.forced {
		variant = t.variant
	}
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameHyperlink:
		return accentFor(variant, 1.0)
	case theme.ColorNameFocus:
		return translucent(accentFor(variant, 1.0), 0x55)
	case theme.ColorNameSelection:
		return translucent(accentFor(variant, 1.0), 0x44)
	}
	return theme.DefaultTheme().Color(name, variant)
}

func (t *appTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *appTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *appTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}

// accentFor keeps the accent hue and shifts luminance per variant so it
// reads on both backgrounds. scale further brightens or darkens around
// that base.
func accentFor(variant fyne.ThemeVariant, scale float64) color.Color {
	h, s, l := accentBase.Hsl()
	if variant == theme.VariantDark {
		l *= 1.25
	} else {
		l *= 0.85
	}
	l *= scale
	if l > 0.92 {
		l = 0.92
	}
	c := colorful.Hsl(h, s, l).Clamped()
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xFF}
}

func translucent(c color.Color, alpha uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: alpha}
}
