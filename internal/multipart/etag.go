package multipart

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// PartETag returns the hex MD5 digest of a part body.
func PartETag(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

// CompositeETag returns the multipart ETag of an object built from parts with
// the given hex ETags, in part order: the MD5 of the concatenated binary
// digests, suffixed with "-" and the part count.
func CompositeETag(etags []string) (string, error) {
	h := md5.New()
	for i, e := range etags {
		raw, err := hex.DecodeString(e)
		if err != nil || len(raw) != md5.Size {
			return "", fmt.Errorf("%w: part %d has malformed etag %q", ErrInvalidPart, i+1, e)
		}
		h.Write(raw)
	}
	return fmt.Sprintf("%s-%d", hex.EncodeToString(h.Sum(nil)), len(etags)), nil
}
