// Package rfc2136 implements the provider interface for authoritative DNS
// servers that accept RFC 2136 Dynamic DNS updates.
//
// Records are read with a zone transfer (AXFR) and written with UPDATE
// messages, both optionally signed with TSIG. The server must allow AXFR
// for the configured key or client address.
//
// Settings:
//
//	SERVER          DNS server address (port 53 if omitted)
//	ZONE            zone to manage
//	TSIG_KEY        TSIG key name (optional)
//	TSIG_SECRET     base64-encoded TSIG secret
//	TSIG_ALGORITHM  hmac-sha256 (default), hmac-sha512, hmac-md5
//	TCP             send updates over TCP
//	TIMEOUT         per-request timeout in seconds
//	TTL             TTL for records created without one (default 300)
package rfc2136
