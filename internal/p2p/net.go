package p2p

import (
	"errors"
	"net"
	"strings"

	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/kyokan/statechannel/pkg/xkey"
)

// ResolveAddrs parses "host:port|compressedHexPubkey" bootstrap peer
// strings into dialable addresses.
func ResolveAddrs(addrs []string) ([]*lnwire.NetAddress, error) {
	out := make([]*lnwire.NetAddress, 0, len(addrs))

	for _, a := range addrs {
		splits := strings.Split(a, "|")

		if len(splits) != 2 {
			return nil, errors.New("invalid peer: " + a)
		}

		host := splits[0]
		pub := splits[1]

		resolved, err := net.ResolveTCPAddr("tcp", host)
		if err != nil {
			return nil, err
		}

		identityKey, err := xkey.PublicFromCompressedHex(pub)
		if err != nil {
			return nil, err
		}

		out = append(out, &lnwire.NetAddress{
			IdentityKey: identityKey.BTCEC(),
			Address:     resolved,
		})
	}

	return out, nil
}
