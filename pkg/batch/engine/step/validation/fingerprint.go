package validation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
)

// nullMarker is the canonical text of SQL NULL.
const nullMarker = `\N`

var textEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

// Fingerprint accumulates a SHA-256 digest over rows in the order they are added.
// Each row contributes its canonical values joined by tabs and terminated by a newline.
type Fingerprint struct {
	h    hash.Hash
	rows int64
}

// NewFingerprint returns an empty Fingerprint.
func NewFingerprint() *Fingerprint {
	return &Fingerprint{h: sha256.New()}
}

// Add appends row to the digest.
func (f *Fingerprint) Add(row model.Row) {
	for i, v := range row {
		if i > 0 {
			f.h.Write([]byte{'\t'})
		}
		f.h.Write([]byte(CanonicalValue(v)))
	}
	f.h.Write([]byte{'\n'})
	f.rows++
}

// Rows returns the number of rows added.
func (f *Fingerprint) Rows() int64 {
	return f.rows
}

// Sum returns the hex digest of the rows added so far.
func (f *Fingerprint) Sum() string {
	return hex.EncodeToString(f.h.Sum(nil))
}

// CanonicalValue renders a scanned value as driver-independent text: the same logical value
// read as an integer, a string or raw bytes yields the same text, and times are rendered in UTC.
func CanonicalValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return nullMarker
	case string:
		return textEscaper.Replace(x)
	case []byte:
		return textEscaper.Replace(string(x))
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	default:
		return textEscaper.Replace(fmt.Sprint(x))
	}
}
