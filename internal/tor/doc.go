// Package tor provides proxied transport for FerrumWeb.
//
// A Client wraps a SOCKS5 dialer (golang.org/x/net/proxy) and builds HTTP
// clients whose connections go through the proxy. EmbeddedTor starts a
// private Tor daemon with tornago for crawl --tor, so .onion seeds can be
// crawled without an external Tor installation.
//
// The package also validates .onion hosts: a seed in the .onion domain must
// be a well-formed v3 address with a correct checksum.
package tor
