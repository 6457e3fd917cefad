// Package docengine implements the minimal operation-based document model the
// synchronization core relies on: an ordered patch history replayed in order
// reproduces the document text, and inserting at a position produces a patch
// that a fresh document can apply.
//
// Patches use a compact textual form:
//
//	ins(4,'x')    insert rune 'x' at position 4
//	ins(4,'x',2)  same, attributed to site 2
//	del(4)        delete the rune at position 4
//
// The engine is deliberately simple: conflict resolution between concurrent
// editors is the client-side editor's concern. The server only synthesizes a
// history from flat text on load and flattens a history back to text on save.
package docengine

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/usernamedt/multitext-server/internal/common"
)

// Doc is a mutable text document identified by an authoring site.
type Doc struct {
	site  int
	runes []rune
}

// New creates an empty document attributed to the given site.
func New(site int) *Doc {
	return &Doc{site: site}
}

// Site returns the document's authoring site.
func (d *Doc) Site() int { return d.site }

// Text returns the current document text.
func (d *Doc) Text() string { return string(d.runes) }

// Len returns the number of runes in the document.
func (d *Doc) Len() int { return len(d.runes) }

// Insert inserts r at pos, clamping pos into [0, Len], and returns the patch
// describing the operation.
func (d *Doc) Insert(pos int, r rune) string {
	if pos < 0 {
		pos = 0
	}
	if pos > len(d.runes) {
		pos = len(d.runes)
	}
	d.runes = append(d.runes, 0)
	copy(d.runes[pos+1:], d.runes[pos:])
	d.runes[pos] = r
	return fmt.Sprintf("ins(%d,'%c',%d)", pos, r, d.site)
}

// Delete removes the rune at pos and returns the patch describing the
// operation. Out-of-range positions return an empty patch and change nothing.
func (d *Doc) Delete(pos int) string {
	if pos < 0 || pos >= len(d.runes) {
		return ""
	}
	d.runes = append(d.runes[:pos], d.runes[pos+1:]...)
	return fmt.Sprintf("del(%d,%d)", pos, d.site)
}

// Apply parses and applies a single patch. Malformed patches yield
// common.ErrorProtocol; positions out of range yield an error as well.
func (d *Doc) Apply(patch string) error {
	switch {
	case strings.HasPrefix(patch, "ins(") && strings.HasSuffix(patch, ")"):
		pos, r, _, err := parseInsert(patch[4 : len(patch)-1])
		if err != nil {
			return err
		}
		if pos < 0 || pos > len(d.runes) {
			return fmt.Errorf("%w: insert position %d out of range", common.ErrorProtocol, pos)
		}
		d.runes = append(d.runes, 0)
		copy(d.runes[pos+1:], d.runes[pos:])
		d.runes[pos] = r
		return nil

	case strings.HasPrefix(patch, "del(") && strings.HasSuffix(patch, ")"):
		pos, _, err := parseDelete(patch[4 : len(patch)-1])
		if err != nil {
			return err
		}
		if pos < 0 || pos >= len(d.runes) {
			return fmt.Errorf("%w: delete position %d out of range", common.ErrorProtocol, pos)
		}
		d.runes = append(d.runes[:pos], d.runes[pos+1:]...)
		return nil

	default:
		return fmt.Errorf("%w: unrecognized patch %q", common.ErrorProtocol, patch)
	}
}

// Replay applies an ordered patch history to the document.
func (d *Doc) Replay(history []string) error {
	for _, patch := range history {
		if err := d.Apply(patch); err != nil {
			return err
		}
	}
	return nil
}

// parseInsert decodes "pos,'c'" or "pos,'c',site".
func parseInsert(body string) (pos int, r rune, site int, err error) {
	comma := strings.IndexByte(body, ',')
	if comma < 0 {
		return 0, 0, 0, fmt.Errorf("%w: malformed insert patch", common.ErrorProtocol)
	}
	pos, err = strconv.Atoi(body[:comma])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: malformed insert position", common.ErrorProtocol)
	}

	rest := body[comma+1:]
	// quoted rune: scan positionally, the rune itself may be any character
	if len(rest) < 3 || rest[0] != '\'' {
		return 0, 0, 0, fmt.Errorf("%w: malformed insert character", common.ErrorProtocol)
	}
	r, size := utf8.DecodeRuneInString(rest[1:])
	if r == utf8.RuneError && size <= 1 {
		return 0, 0, 0, fmt.Errorf("%w: malformed insert character", common.ErrorProtocol)
	}
	rest = rest[1+size:]
	if len(rest) == 0 || rest[0] != '\'' {
		return 0, 0, 0, fmt.Errorf("%w: unterminated insert character", common.ErrorProtocol)
	}
	rest = rest[1:]

	switch {
	case rest == "":
		return pos, r, 0, nil
	case strings.HasPrefix(rest, ","):
		site, err = strconv.Atoi(rest[1:])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: malformed insert site", common.ErrorProtocol)
		}
		return pos, r, site, nil
	default:
		return 0, 0, 0, fmt.Errorf("%w: trailing garbage in insert patch", common.ErrorProtocol)
	}
}

// parseDelete decodes "pos" or "pos,site".
func parseDelete(body string) (pos int, site int, err error) {
	parts := strings.SplitN(body, ",", 2)
	pos, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed delete position", common.ErrorProtocol)
	}
	if len(parts) == 2 {
		site, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("%w: malformed delete site", common.ErrorProtocol)
		}
	}
	return pos, site, nil
}
