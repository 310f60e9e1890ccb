// Package fits parses the handful of FITS primary-header keywords the
// stacking pipeline needs and derives chunk keys from them.
//
// FITS headers are 80-byte ASCII keyword cards arranged in 2880-byte
// blocks; only the primary header is read.
package fits

import (
	"errors"
	"io"
	"strconv"
	"strings"
)

const (
	blockSize     = 2880
	cardSize      = 80
	cardsPerBlock = blockSize / cardSize

	// maxBlocks bounds how far into a file the parser will look for the
	// END card before giving up.
	maxBlocks = 10
)

// fitsMagic is the mandatory first card prefix of a FITS primary header.
const fitsMagic = "SIMPLE  =                    T"

// ErrNotFITS indicates the stream does not start with a FITS primary header
var ErrNotFITS = errors.New("fits: not a valid FITS file")

// Header holds the recognized primary-header keywords. A nil field means
// the keyword was absent or its value was not usable.
type Header struct {
	DateObs *string  // DATE-OBS, ISO-ish observation timestamp
	Object  *string  // OBJECT, target name
	ExpTime *float64 // EXPTIME, exposure seconds
	RA      *float64 // RA, right ascension in degrees
	Dec     *float64 // DEC, declination in degrees
}

// ParseHeader reads FITS header blocks from r until the END card or the
// block budget is exhausted, extracting the recognized keywords. Unknown
// keywords are ignored. Returns ErrNotFITS when the magic prefix is
// missing.
func ParseHeader(r io.Reader) (*Header, error) {
	block := make([]byte, blockSize)

	h := &Header{}
	foundEnd := false

	for blockIdx := 0; blockIdx < maxBlocks && !foundEnd; blockIdx++ {
		if _, err := io.ReadFull(r, block); err != nil {
			if blockIdx == 0 {
				return nil, ErrNotFITS
			}
			// Truncated trailing block: stop with what we have.
			break
		}

		if blockIdx == 0 && string(block[:len(fitsMagic)]) != fitsMagic {
			return nil, ErrNotFITS
		}

		for i := 0; i < cardsPerBlock; i++ {
			card := string(block[i*cardSize : (i+1)*cardSize])
			key := strings.TrimSpace(card[:8])

			if key == "END" {
				foundEnd = true
				break
			}

			switch key {
			case "DATE-OBS", "OBJECT", "EXPTIME", "RA", "DEC":
			default:
				continue
			}

			// Value indicator "= " occupies bytes 8-9; the value (and an
			// optional inline comment) fills the rest of the card.
			text, numeric, ok := parseValue(card[10:])
			if !ok {
				continue
			}

			switch key {
			case "DATE-OBS":
				if h.DateObs == nil {
					h.DateObs = &text
				}
			case "OBJECT":
				if h.Object == nil {
					h.Object = &text
				}
			case "EXPTIME":
				if h.ExpTime == nil && numeric != nil {
					h.ExpTime = numeric
				}
			case "RA":
				if h.RA == nil && numeric != nil {
					h.RA = numeric
				}
			case "DEC":
				if h.Dec == nil && numeric != nil {
					h.Dec = numeric
				}
			}
		}
	}

	return h, nil
}

// parseValue extracts a card value. Quoted strings end at the next
// unescaped quote (FITS escapes a quote by doubling it); scalar values
// have any inline "/" comment stripped and are parsed as a number when
// numeric. ok is false when no usable value is present.
func parseValue(raw string) (text string, numeric *float64, ok bool) {
	if raw == "" {
		return "", nil, false
	}

	if raw[0] == '\'' {
		end := -1
		for i := 1; i < len(raw); i++ {
			if raw[i] != '\'' {
				continue
			}
			if i+1 < len(raw) && raw[i+1] == '\'' {
				i++ // escaped quote, keep scanning
				continue
			}
			end = i
			break
		}
		if end < 0 {
			return "", nil, false
		}

		text = strings.TrimSpace(strings.ReplaceAll(raw[1:end], "''", "'"))
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			numeric = &v
		}
		return text, numeric, true
	}

	if slash := strings.IndexByte(raw, '/'); slash >= 0 {
		raw = raw[:slash]
	}

	text = strings.TrimSpace(raw)
	if text == "" {
		return "", nil, false
	}

	if v, err := strconv.ParseFloat(text, 64); err == nil {
		numeric = &v
	}
	return text, numeric, true
}
