package chain

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// Simulator evaluates create/resolve transfer predicates. It caches each
// transfer definition's bytecode so repeated predicate evaluations against
// the same definition don't repeat a getCode round trip; the predicate
// itself is always evaluated through Reader's live Create/Resolve call
// (an eth_call against the node), since this module has no sandboxed EVM
// interpreter of its own to execute cached bytecode against — a local
// interpreter is future work, not grounded on anything in the reference
// corpus. Simulator's job today is the caching layer plus a uniform entry
// point the validator can call regardless of whether that future
// interpreter ever lands.
type Simulator struct {
	reader Reader

	mu   sync.Mutex
	code map[common.Address][]byte
}

func NewSimulator(reader Reader) *Simulator {
	return &Simulator{reader: reader, code: make(map[common.Address][]byte)}
}

// HasBytecode reports whether definition has deployed bytecode, caching
// the result.
func (s *Simulator) HasBytecode(definition common.Address) (bool, error) {
	s.mu.Lock()
	if cached, ok := s.code[definition]; ok {
		s.mu.Unlock()
		return len(cached) > 0, nil
	}
	s.mu.Unlock()

	code, err := s.reader.GetCode(definition)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.code[definition] = code
	s.mu.Unlock()
	return len(code) > 0, nil
}

func (s *Simulator) Create(initialState []byte, balance chantypes.Balance, definition, registry common.Address) (bool, error) {
	return s.reader.Create(initialState, balance, definition, registry)
}

func (s *Simulator) Resolve(transferID chantypes.TransferID, definition common.Address, resolver []byte) (chantypes.Balance, error) {
	return s.reader.Resolve(transferID, definition, resolver)
}
