package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"log"
	"runtime"
)

const iconSize = 32

// iconBytes renders the tray glyph: a dashed selection rectangle around
// two text lines. Windows wants an ICO container, the other platforms
// take the PNG as is.
func iconBytes() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, renderIcon(iconSize)); err != nil {
		log.Printf("Tray: icon encode failed: %v", err)
		return nil
	}
	if runtime.GOOS == "windows" {
		return icoContainer(buf.Bytes(), iconSize)
	}
	return buf.Bytes()
}

func renderIcon(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	accent := color.RGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0xFF}
	ink := color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xFF}

	inset := size / 8
	lo, hi := inset, size-1-inset
	dash := func(i int) bool { return i%5 < 3 }

	for x := lo; x <= hi; x++ {
		if dash(x - lo) {
			img.SetRGBA(x, lo, accent)
			img.SetRGBA(x, lo+1, accent)
			img.SetRGBA(x, hi-1, accent)
			img.SetRGBA(x, hi, accent)
		}
	}
	for y := lo; y <= hi; y++ {
		if dash(y - lo) {
			img.SetRGBA(lo, y, accent)
			img.SetRGBA(lo+1, y, accent)
			img.SetRGBA(hi-1, y, accent)
			img.SetRGBA(hi, y, accent)
		}
	}

	rowA := size * 3 / 8
	rowB := size * 5 / 8
	for x := lo + 3; x <= hi-3; x++ {
		img.SetRGBA(x, rowA, ink)
	}
	for x := lo + 3; x <= hi-6; x++ {
		img.SetRGBA(x, rowB, ink)
	}
	return img
}

// icoContainer wraps one PNG image in an ICO directory. PNG entries in
// ICO files are supported since Vista, which is older than anything the
// overlay can run on.
func icoContainer(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // type: icon
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // image count
	buf.WriteByte(byte(size % 256))
	buf.WriteByte(byte(size % 256))
	buf.WriteByte(0) // no palette
	buf.WriteByte(0) // reserved
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // color planes
	binary.Write(&buf, binary.LittleEndian, uint16(32)) // bits per pixel
	binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	binary.Write(&buf, binary.LittleEndian, uint32(6+16)) // data offset
	buf.Write(pngData)
	return buf.Bytes()
}
