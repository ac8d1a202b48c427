// Package textenc is the Encoding Detector (spec.md §4.4): decode
// bytes of unknown encoding — mainly .lrc lyric files pulled off disk
// by the Asset Probe — into UTF-8 text, trying legacy encodings in
// order of prevalence and scoring each attempt by how much of it comes
// out as the replacement character.
package textenc

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/franz/sonora/internal/apperr"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// replacementThreshold is the maximum fraction of decoded runes that
// may be U+FFFD before a candidate encoding is rejected.
const replacementThreshold = 0.005

type candidate struct {
	name string
	enc  encoding.Encoding // nil means "try as UTF-8, no transform"
}

var candidates = []candidate{
	{"utf-8", nil},
	{"gb18030", simplifiedchinese.GB18030},
	{"big5", traditionalchinese.Big5},
	{"shift-jis", japanese.ShiftJIS},
	{"iso-8859-1", charmap.ISO8859_1},
}

// Decode tries each candidate encoding in order and returns the text
// and encoding name of the first one producing an acceptably low rate
// of replacement characters. UTF-8 is tried strictly first: valid
// UTF-8 input is never redecoded as something else.
func Decode(data []byte) (string, string, error) {
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	for _, c := range candidates {
		if c.enc == nil {
			continue // utf-8 already ruled out above
		}
		decoded, err := c.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if replacementRatio(decoded) < replacementThreshold {
			return string(decoded), c.name, nil
		}
	}

	return "", "", fmt.Errorf("%w: no candidate encoding decoded cleanly", apperr.ErrUndecodableLyric)
}

func replacementRatio(decoded []byte) float64 {
	text := string(decoded)
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}
	replacements := strings.Count(text, "�")
	return float64(replacements) / float64(total)
}
