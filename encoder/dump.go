package encoder

import (
	"fmt"
	"strings"

	"github.com/klauspost/asmfmt"
	"golang.org/x/arch/x86/x86asm"
)

// DumpText decodes the accumulated text buffer and returns an
// Intel-syntax disassembly listing, one instruction per line prefixed
// with its text offset. It is a debugging aid (driven by cmd/mcdump),
// never consulted by the compiler itself; a byte sequence the decoder
// can't parse is reported inline rather than aborting the whole dump, so
// one bad instruction doesn't hide the rest. The listing is passed
// through asmfmt for column alignment before being returned; a listing
// asmfmt can't parse (it expects Go assembler syntax, and a decode error
// line doesn't look like one) is returned unformatted rather than
// dropped.
func (e *Encoder) DumpText() string {
	var b strings.Builder
	buf := e.text
	offset := 0
	for offset < len(buf) {
		inst, err := x86asm.Decode(buf[offset:], 64)
		if err != nil {
			fmt.Fprintf(&b, "%6d: <decode error: %v, byte 0x%02x>\n", offset, err, buf[offset])
			offset++
			continue
		}
		fmt.Fprintf(&b, "%6d: %s\n", offset, x86asm.IntelSyntax(inst, uint64(offset), nil))
		if inst.Len == 0 {
			offset++
			continue
		}
		offset += inst.Len
	}
	return formatListing(b.String())
}

// formatListing runs a pseudo-assembly trace through asmfmt, falling
// back to the unformatted text on any parse error — DumpText's output is
// read by a human, not re-assembled, so a formatting failure should never
// hide the underlying trace.
func formatListing(text string) string {
	formatted, err := asmfmt.Format(strings.NewReader(text))
	if err != nil {
		return text
	}
	return string(formatted)
}
