package cwmanager

// Version is the server version reported in the MCP handshake when the
// configuration does not set one. Overridden at build time with
// -ldflags "-X github.com/wagiedev/cwmanager.Version=...".
var Version = "0.1.0"
