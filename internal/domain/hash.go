package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Domain prefixes for content-addressed record identity.
// The version suffix leaves room for a future algorithm change.
const (
	DomainMigrationError = "relaymigrate/migration-error/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MigrationErrorID computes the content-addressed ID of a migration error.
// A pair fails at most once per balance type within a pass, so the ID is
// derived from (pass, index, balance type) alone. A pair retried after an
// aborted call maps to the record it already has.
func MigrationErrorID(rec MigrationError) string {
	var buf []byte
	buf = binary.BigEndian.AppendUint64(buf, uint64(rec.Pass))
	buf = binary.BigEndian.AppendUint64(buf, uint64(rec.Index))
	buf = append(buf, []byte(rec.BalanceType)...)
	return hashWithDomain(DomainMigrationError, buf)
}
