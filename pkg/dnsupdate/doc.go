// Package dnsupdate is a small RFC 2136 Dynamic DNS Update client.
//
// It sends UPDATE messages for A, AAAA and TXT records, optionally signed
// with TSIG (RFC 8945), and reads zone contents back with AXFR.
//
// Generate a TSIG key with BIND's tsig-keygen:
//
//	tsig-keygen -a hmac-sha256 clouddns-nat > clouddns-nat.key
//
// The server must permit both updates and zone transfers for that key.
package dnsupdate
