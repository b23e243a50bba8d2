// core/uvfits/reader.go
package uvfits

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// HDUHeader is one parsed header unit: raw card values keyed by keyword,
// plus the absolute file offset of every card so values can be patched in
// place.
type HDUHeader struct {
	Name    string // EXTNAME, empty for the primary HDU
	cards   map[string]string
	offsets map[string]int64
	start   int64
	dataOff int64
}

// Str returns the string value of key.
func (h *HDUHeader) Str(key string) (string, bool) {
	v, ok := h.cards[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "'") {
		v = strings.TrimPrefix(v, "'")
		if i := strings.LastIndex(v, "'"); i >= 0 {
			v = v[:i]
		}
		return strings.TrimRight(strings.ReplaceAll(v, "''", "'"), " "), true
	}
	return v, true
}

// Int returns the integer value of key.
func (h *HDUHeader) Int(key string) (int, error) {
	v, ok := h.cards[key]
	if !ok {
		return 0, fmt.Errorf("missing header key %s", key)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("header key %s: %w", key, err)
	}
	return int(n), nil
}

// Float returns the floating-point value of key.
func (h *HDUHeader) Float(key string) (float64, error) {
	v, ok := h.cards[key]
	if !ok {
		return 0, fmt.Errorf("missing header key %s", key)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("header key %s: %w", key, err)
	}
	return f, nil
}

// File is an opened random-groups file. The primary data region is
// addressable by group index; extension headers are parsed for inspection.
type File struct {
	f  *os.File
	rw bool

	Primary *HDUHeader
	Exts    []*HDUHeader

	GCount, PCount int
	NPol, NChan    int
	groupFloats    int
	dataStart      int64
}

// Open opens path read-only.
func Open(path string) (*File, error) { return open(path, false) }

// Edit opens path for in-place rewriting.
func Edit(path string) (*File, error) { return open(path, true) }

func open(path string, rw bool) (*File, error) {
	flags := os.O_RDONLY
	if rw {
		flags = os.O_RDWR
	}
	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, err
	}
	u := &File{f: f, rw: rw}
	if err := u.parse(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return u, nil
}

func (u *File) parse() error {
	hdr, err := readHeader(u.f, 0)
	if err != nil {
		return fmt.Errorf("primary header: %w", err)
	}
	u.Primary = hdr

	if v, _ := hdr.Str("GROUPS"); v != "T" {
		return fmt.Errorf("not a random-groups file")
	}
	if u.GCount, err = hdr.Int("GCOUNT"); err != nil {
		return err
	}
	if u.PCount, err = hdr.Int("PCOUNT"); err != nil {
		return err
	}
	naxis, err := hdr.Int("NAXIS")
	if err != nil {
		return err
	}
	prod := 1
	for i := 2; i <= naxis; i++ {
		n, err := hdr.Int(fmt.Sprintf("NAXIS%d", i))
		if err != nil {
			return err
		}
		prod *= n
	}
	if u.NPol, err = hdr.Int("NAXIS3"); err != nil {
		return err
	}
	if u.NChan, err = hdr.Int("NAXIS4"); err != nil {
		return err
	}
	u.groupFloats = u.PCount + prod
	u.dataStart = hdr.dataOff

	// Walk the extensions that follow the padded data region.
	dataBytes := int64(u.GCount) * int64(u.groupFloats) * 4
	off := u.dataStart + dataBytes + int64(len(padBlock(dataBytes)))
	for {
		ext, err := readHeader(u.f, off)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("extension header at %d: %w", off, err)
		}
		if name, ok := ext.Str("EXTNAME"); ok {
			ext.Name = name
		}
		u.Exts = append(u.Exts, ext)
		n1, _ := ext.Int("NAXIS1")
		n2, _ := ext.Int("NAXIS2")
		pc, _ := ext.Int("PCOUNT")
		extData := int64(n1)*int64(n2) + int64(pc)
		off = ext.dataOff + extData + int64(len(padBlock(extData)))
	}
	return nil
}

// readHeader parses one header unit starting at off.
func readHeader(f *os.File, off int64) (*HDUHeader, error) {
	h := &HDUHeader{cards: map[string]string{}, offsets: map[string]int64{}, start: off}
	block := make([]byte, BlockLen)
	pos := off
	for {
		if _, err := f.ReadAt(block, pos); err != nil {
			if err == io.EOF && pos == off {
				return nil, io.EOF
			}
			return nil, err
		}
		for c := 0; c < BlockLen; c += CardLen {
			card := string(block[c : c+CardLen])
			key := strings.TrimRight(card[:8], " ")
			if key == "END" {
				h.dataOff = pos + BlockLen
				return h, nil
			}
			if len(card) < 10 || card[8] != '=' {
				continue // COMMENT, HISTORY, blank
			}
			h.cards[key] = stripComment(card[10:])
			h.offsets[key] = pos + int64(c)
		}
		pos += BlockLen
	}
}

// stripComment trims an inline comment, respecting quoted strings.
func stripComment(v string) string {
	if i := strings.Index(v, "'"); i >= 0 {
		// Find the closing quote (doubled quotes escape).
		j := i + 1
		for j < len(v) {
			if v[j] == '\'' {
				if j+1 < len(v) && v[j+1] == '\'' {
					j += 2
					continue
				}
				break
			}
			j++
		}
		return strings.TrimSpace(v[:j+1])
	}
	if i := strings.Index(v, "/"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// Ext returns the first extension named name, or nil.
func (u *File) Ext(name string) *HDUHeader {
	for _, e := range u.Exts {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// GroupFloats returns the number of float32 values per record, group
// parameters included.
func (u *File) GroupFloats() int { return u.groupFloats }

// ReadGroup reads record i (0-based) as raw float32 values: PCount group
// parameters followed by the visibility triplets.
func (u *File) ReadGroup(i int) ([]float32, error) {
	if i < 0 || i >= u.GCount {
		return nil, fmt.Errorf("group %d out of range [0,%d)", i, u.GCount)
	}
	buf := make([]byte, u.groupFloats*4)
	off := u.dataStart + int64(i)*int64(len(buf))
	if _, err := u.f.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("read group %d: %w", i, err)
	}
	out := make([]float32, u.groupFloats)
	for k := range out {
		out[k] = math.Float32frombits(binary.BigEndian.Uint32(buf[k*4:]))
	}
	return out, nil
}

// WriteGroup rewrites record i in place. The file must be opened with Edit.
func (u *File) WriteGroup(i int, rec []float32) error {
	if !u.rw {
		return fmt.Errorf("file not opened for editing")
	}
	if len(rec) != u.groupFloats {
		return fmt.Errorf("record has %d values, want %d", len(rec), u.groupFloats)
	}
	buf := make([]byte, len(rec)*4)
	for k, v := range rec {
		binary.BigEndian.PutUint32(buf[k*4:], math.Float32bits(v))
	}
	off := u.dataStart + int64(i)*int64(len(buf))
	if _, err := u.f.WriteAt(buf, off); err != nil {
		return fmt.Errorf("write group %d: %w", i, err)
	}
	return nil
}

// PatchFloat rewrites a primary-header keyword in place.
func (u *File) PatchFloat(key string, v float64) error {
	if !u.rw {
		return fmt.Errorf("file not opened for editing")
	}
	off, ok := u.Primary.offsets[key]
	if !ok {
		return fmt.Errorf("missing header key %s", key)
	}
	card := fmt.Sprintf("%-*s", CardLen, valueCard(key, formatFloat(v), ""))
	if _, err := u.f.WriteAt([]byte(card), off); err != nil {
		return err
	}
	u.Primary.cards[key] = formatFloat(v)
	return nil
}

// ChanFreqs derives the per-channel frequencies from the frequency axis
// keywords, the way downstream tools interpret them.
func (u *File) ChanFreqs() ([]float64, error) {
	base, err := u.Primary.Float("CRVAL4")
	if err != nil {
		return nil, err
	}
	pix, err := u.Primary.Float("CRPIX4")
	if err != nil {
		return nil, err
	}
	width, err := u.Primary.Float("CDELT4")
	if err != nil {
		return nil, err
	}
	freqs := make([]float64, u.NChan)
	for i := range freqs {
		freqs[i] = base + (float64(i)-(pix-1))*width
	}
	return freqs, nil
}

// Close releases the underlying file.
func (u *File) Close() error { return u.f.Close() }
