// core/uvfits/card.go
package uvfits

import (
	"fmt"
	"strings"
)

// FITS physical layout constants.
const (
	CardLen  = 80
	BlockLen = 2880
)

// header accumulates fixed-size ASCII cards for one HDU.
type header struct {
	cards []string
}

func (h *header) add(card string) {
	if len(card) > CardLen {
		card = card[:CardLen]
	}
	h.cards = append(h.cards, fmt.Sprintf("%-*s", CardLen, card))
}

func valueCard(key, value, comment string) string {
	card := fmt.Sprintf("%-8s= %s", key, value)
	if comment != "" {
		card += " / " + comment
	}
	return card
}

func (h *header) logical(key string, v bool, comment string) {
	t := "F"
	if v {
		t = "T"
	}
	h.add(valueCard(key, fmt.Sprintf("%20s", t), comment))
}

func (h *header) intKey(key string, v int64, comment string) {
	h.add(valueCard(key, fmt.Sprintf("%20d", v), comment))
}

func (h *header) floatKey(key string, v float64, comment string) {
	h.add(valueCard(key, formatFloat(v), comment))
}

func (h *header) strKey(key, v, comment string) {
	h.add(valueCard(key, fmt.Sprintf("%-20s", quoteString(v)), comment))
}

func (h *header) history(text string) { h.add("HISTORY " + text) }
func (h *header) comment(text string) { h.add("COMMENT " + text) }

// offsetOf returns the byte offset of key's card within the serialized
// header, or -1 if absent.
func (h *header) offsetOf(key string) int64 {
	prefix := fmt.Sprintf("%-8s=", key)
	for i, c := range h.cards {
		if strings.HasPrefix(c, prefix) {
			return int64(i * CardLen)
		}
	}
	return -1
}

// bytes closes the header with END and pads it to a whole number of blocks.
func (h *header) bytes() []byte {
	var b strings.Builder
	for _, c := range h.cards {
		b.WriteString(c)
	}
	b.WriteString(fmt.Sprintf("%-*s", CardLen, "END"))
	for b.Len()%BlockLen != 0 {
		b.WriteByte(' ')
	}
	return []byte(b.String())
}

// formatFloat renders v right-justified in the fixed 20-column value field.
func formatFloat(v float64) string {
	if v == float64(int64(v)) && v < 1e15 && v > -1e15 {
		return fmt.Sprintf("%20.1f", v)
	}
	return fmt.Sprintf("%20.12E", v)
}

// quoteString renders a FITS string constant, padded to the minimum 8
// characters and with embedded quotes doubled.
func quoteString(s string) string {
	s = strings.ReplaceAll(s, "'", "''")
	return fmt.Sprintf("'%-8s'", s)
}

// padBlock returns the zero padding needed to align n bytes to a block.
func padBlock(n int64) []byte {
	rem := n % BlockLen
	if rem == 0 {
		return nil
	}
	return make([]byte, BlockLen-rem)
}
