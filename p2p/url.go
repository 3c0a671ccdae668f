package p2p

import (
	pstore "github.com/libp2p/go-libp2p-peerstore"
	ma "github.com/multiformats/go-multiaddr"
)

// ParseURL converts a full multiaddr string such as
// /ip4/104.131.131.82/tcp/4001/ipfs/QmaCpDM... into peer connection info.
func ParseURL(rawurl string) (*pstore.PeerInfo, error) {
	addr, err := ma.NewMultiaddr(rawurl)
	if err != nil {
		return nil, err
	}
	return pstore.InfoFromP2pAddr(addr)
}

// MustParseURL parses a multiaddr string, panicking on malformed input.
// Useful for hardcoded bootstrap lists.
func MustParseURL(rawurl string) *pstore.PeerInfo {
	info, err := ParseURL(rawurl)
	if err != nil {
		panic("p2p: invalid peer url " + rawurl + ": " + err.Error())
	}
	return info
}
