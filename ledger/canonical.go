package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Hash returns the SHA-256 hex digest of the canonical serialization of b.
func Hash(b Block) string {
	sum := sha256.Sum256(appendBlock(nil, b))
	return hex.EncodeToString(sum[:])
}

// SigningMessage returns the message a voter signs for a transaction: the
// canonical serialization of {amount, election_id, recipient, sender}.
// Clients must sign exactly these bytes.
func SigningMessage(sender, recipient string, amount int64, electionID string) string {
	if electionID == "" {
		electionID = DefaultElectionID
	}
	b := make([]byte, 0, 96)
	b = append(b, `{"amount": `...)
	b = strconv.AppendInt(b, amount, 10)
	b = append(b, `, "election_id": `...)
	b = appendString(b, electionID)
	b = append(b, `, "recipient": `...)
	b = appendString(b, recipient)
	b = append(b, `, "sender": `...)
	b = appendString(b, sender)
	b = append(b, '}')
	return string(b)
}

// Keys are written in sorted order: index, previous_hash, proof, timestamp,
// transactions.
func appendBlock(b []byte, blk Block) []byte {
	b = append(b, `{"index": `...)
	b = strconv.AppendInt(b, int64(blk.Index), 10)
	b = append(b, `, "previous_hash": `...)
	b = appendString(b, blk.PreviousHash)
	b = append(b, `, "proof": `...)
	b = strconv.AppendInt(b, blk.Proof, 10)
	b = append(b, `, "timestamp": `...)
	b = appendFloat(b, blk.Timestamp)
	b = append(b, `, "transactions": [`...)
	for i, tx := range blk.Transactions {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = appendTransaction(b, tx)
	}
	return append(b, "]}"...)
}

// Keys are written in sorted order: amount, election_id, recipient, sender,
// signature. An empty signature is encoded as null.
func appendTransaction(b []byte, tx Transaction) []byte {
	b = append(b, `{"amount": `...)
	b = strconv.AppendInt(b, tx.Amount, 10)
	b = append(b, `, "election_id": `...)
	b = appendString(b, tx.electionID())
	b = append(b, `, "recipient": `...)
	b = appendString(b, tx.Recipient)
	b = append(b, `, "sender": `...)
	b = appendString(b, tx.Sender)
	b = append(b, `, "signature": `...)
	if tx.Signature == "" {
		b = append(b, "null"...)
	} else {
		b = appendString(b, tx.Signature)
	}
	return append(b, '}')
}

// appendFloat renders f as a repr-style float: shortest
// round-trip digits, fixed notation with a mandatory fractional part for
// 1e-4 <= |f| < 1e16, exponent notation otherwise.
func appendFloat(b []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(b, "NaN"...)
	case math.IsInf(f, 1):
		return append(b, "Infinity"...)
	case math.IsInf(f, -1):
		return append(b, "-Infinity"...)
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.AppendFloat(b, f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return append(b, s...)
}

const hexDigits = "0123456789abcdef"

// appendString writes s as an ASCII-only JSON string literal.
func appendString(b []byte, s string) []byte {
	b = append(b, '"')
	for _, r := range s {
		switch {
		case r == '"':
			b = append(b, `\"`...)
		case r == '\\':
			b = append(b, `\\`...)
		case r == '\n':
			b = append(b, `\n`...)
		case r == '\r':
			b = append(b, `\r`...)
		case r == '\t':
			b = append(b, `\t`...)
		case r == '\b':
			b = append(b, `\b`...)
		case r == '\f':
			b = append(b, `\f`...)
		case r < 0x20 || (r >= 0x7f && r <= 0xffff):
			b = appendUnicodeEscape(b, r)
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			b = appendUnicodeEscape(b, r1)
			b = appendUnicodeEscape(b, r2)
		default:
			b = append(b, byte(r))
		}
	}
	return append(b, '"')
}

func appendUnicodeEscape(b []byte, r rune) []byte {
	return append(b, '\\', 'u',
		hexDigits[(r>>12)&0xf],
		hexDigits[(r>>8)&0xf],
		hexDigits[(r>>4)&0xf],
		hexDigits[r&0xf],
	)
}

func encodeSignature(sig []byte) string {
	if len(sig) == 0 {
		return ""
	}
	return hex.EncodeToString(sig)
}
