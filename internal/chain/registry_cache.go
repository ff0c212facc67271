package chain

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// RegistryCache wraps a Reader so the registered-transfer list is fetched
// once per registry address and then served from memory, per spec.md
// §4.5: "The core caches the registered-transfer list per chain id on
// first use and invalidates only on restart." Since the cache lives in
// process memory, a restart is the only invalidation path there is —
// there is deliberately no TTL or explicit Invalidate method.
type RegistryCache struct {
	Reader

	mu    sync.Mutex
	byReg map[common.Address][]*RegisteredTransfer
}

func NewRegistryCache(inner Reader) *RegistryCache {
	return &RegistryCache{
		Reader: inner,
		byReg:  make(map[common.Address][]*RegisteredTransfer),
	}
}

func (c *RegistryCache) GetRegisteredTransfers(registry common.Address) ([]*RegisteredTransfer, error) {
	c.mu.Lock()
	if cached, ok := c.byReg[registry]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	transfers, err := c.Reader.GetRegisteredTransfers(registry)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.byReg[registry] = transfers
	c.mu.Unlock()
	return transfers, nil
}

func (c *RegistryCache) GetRegisteredTransferByName(name string, registry common.Address) (*RegisteredTransfer, error) {
	transfers, err := c.GetRegisteredTransfers(registry)
	if err != nil {
		return nil, err
	}
	for _, t := range transfers {
		if t.Name == name {
			return t, nil
		}
	}
	return c.Reader.GetRegisteredTransferByName(name, registry)
}

func (c *RegistryCache) GetRegisteredTransferByDefinition(definition, registry common.Address) (*RegisteredTransfer, error) {
	transfers, err := c.GetRegisteredTransfers(registry)
	if err != nil {
		return nil, err
	}
	for _, t := range transfers {
		if t.DefinitionAddress == definition {
			return t, nil
		}
	}
	return c.Reader.GetRegisteredTransferByDefinition(definition, registry)
}
