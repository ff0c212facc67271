package p2p

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
)

func TestResolveAddrs(t *testing.T) {
	keyA := "0x02ce7edc292d7b747fab2f23584bbafaffde5c8ff17cf689969614441e0527b900"
	keyB := "0x02785a891f323acd6cef0fc509bb14304410595914267c50467e51c87142acbb5e"

	inputAddrs := []string{
		"127.0.0.1:8080|" + keyA,
		"8.8.8.8:8080|" + keyB,
	}

	resolved, err := ResolveAddrs(inputAddrs)
	assert.NoError(t, err)
	assert.Len(t, resolved, 2)

	assert.Equal(t, keyA, hexutil.Encode(resolved[0].IdentityKey.SerializeCompressed()))
	assert.Equal(t, keyB, hexutil.Encode(resolved[1].IdentityKey.SerializeCompressed()))
	assert.Equal(t, "127.0.0.1:8080", resolved[0].Address.String())
	assert.Equal(t, "8.8.8.8:8080", resolved[1].Address.String())
}

func TestResolveAddrs_RejectsMalformedPeer(t *testing.T) {
	_, err := ResolveAddrs([]string{"127.0.0.1:8080"})
	assert.Error(t, err)
}
