// Package reputation decides whether a client address is likely automated or
// anonymised.
//
// Each [Source] answers with a [Verdict]. The [Aggregator] walks sources in
// configured order and stops at the first positive. [Cache] keeps definite
// verdicts in Redis for eight hours and collapses concurrent identical
// lookups.
//
// Available sources: ipapi, ipintel, stopforumspam (HTTP APIs), geoip
// (local MaxMind databases, ASN denylist and an optional rule tree),
// tor_hostname (DNSBL) and tor_exonerator (ExoneraTor page scrape).
//
// # Failure policy
//
// Sources never return errors. A failed lookup is Unknown, except that Tor
// DNS failures other than NXDOMAIN and ExoneraTor timeouts are Suspected when
// the suspicion policy is enabled. Suspected blocks like Malicious but is not
// cached.
//
// # What this package must NOT do
//
//   - Store raw client addresses (keys use the IP fingerprint).
//   - Cache Unknown or Suspected verdicts.
package reputation
