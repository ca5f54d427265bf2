package association

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// cookieIssuer mints and verifies the opaque state cookie a server hands
// back in INIT-ACK and expects to see echoed in COOKIE-ECHO (RFC 4960
// §5.1.3): an HMAC over both sides' verification tags, the peer's
// initial TSN, and an issue timestamp, with a bounded lifetime so a
// replayed cookie eventually stops working.
type cookieIssuer struct {
	secret   []byte
	lifetime time.Duration
}

func newCookieIssuer(secret []byte, lifetime time.Duration) *cookieIssuer {
	if len(secret) == 0 {
		secret = []byte("sctp-proto-default-cookie-secret")
	}
	return &cookieIssuer{secret: secret, lifetime: lifetime}
}

// cookiePlainLen is initTag(4) + peerInitTag(4) + initialTSN(4) + issuedAt(8).
const cookiePlainLen = 20

// issue builds a cookie binding the two sides' verification tags and the
// peer's initial TSN to an issue timestamp, MACed so a peer cannot forge
// or replay an expired one.
func (c *cookieIssuer) issue(now time.Time, myTag, peerTag, peerInitialTSN uint32) []byte {
	plain := make([]byte, cookiePlainLen)
	binary.BigEndian.PutUint32(plain[0:], myTag)
	binary.BigEndian.PutUint32(plain[4:], peerTag)
	binary.BigEndian.PutUint32(plain[8:], peerInitialTSN)
	binary.BigEndian.PutUint64(plain[12:], uint64(now.UnixNano()))
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(plain)
	return append(plain, mac.Sum(nil)...)
}

// cookieFields is what verify extracts from a cookie once its MAC and
// lifetime check out.
type cookieFields struct {
	myTag          uint32
	peerTag        uint32
	peerInitialTSN uint32
}

// verify checks the cookie's MAC and lifetime window, returning the
// embedded fields on success.
func (c *cookieIssuer) verify(cookie []byte, now time.Time) (cookieFields, bool) {
	mac := hmac.New(sha256.New, c.secret)
	if len(cookie) < cookiePlainLen+mac.Size() {
		return cookieFields{}, false
	}
	plain, sum := cookie[:cookiePlainLen], cookie[cookiePlainLen:]
	mac.Write(plain)
	if !hmac.Equal(sum, mac.Sum(nil)) {
		return cookieFields{}, false
	}
	issuedAt := time.Unix(0, int64(binary.BigEndian.Uint64(plain[12:])))
	if c.lifetime > 0 && now.Sub(issuedAt) > c.lifetime {
		return cookieFields{}, false
	}
	return cookieFields{
		myTag:          binary.BigEndian.Uint32(plain[0:]),
		peerTag:        binary.BigEndian.Uint32(plain[4:]),
		peerInitialTSN: binary.BigEndian.Uint32(plain[8:]),
	}, true
}
