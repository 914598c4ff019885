// Package wire defines the datagram header formats of the protocol and their
// binary codecs. Headers are fixed-layout big-endian; the only variable part
// is the fragment metadata block present on fragment datagrams.
package wire

import "hash/crc32"

const (
	protocolName    = "rudp"
	protocolVersion = "0.3.0"
)

var protocolID = crc32.ChecksumIEEE([]byte(protocolName + "-" + protocolVersion))

// Version returns the human-readable protocol version string.
func Version() string {
	return protocolName + "-" + protocolVersion
}

// ProtocolID returns the CRC32 of the protocol version string. Every
// datagram carries it; peers speaking a different version are ignored.
func ProtocolID() uint32 {
	return protocolID
}

// ValidProtocolID reports whether id matches the local protocol version.
func ValidProtocolID(id uint32) bool {
	return id == protocolID
}
