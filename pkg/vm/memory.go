package vm

import (
	"fmt"
	"math/big"
)

// Memory is the scratch region: a word-addressed heap where address 0 is never
// allocated, so a zero word doubles as "no indirection yet"
type Memory struct {
	words []*big.Int
}

func NewMemory() *Memory { return &Memory{words: []*big.Int{new(big.Int)}} }

// Alloc reserves size zeroed words and returns the first address
func (m *Memory) Alloc(size int) int {
	ptr := len(m.words)
	for i := 0; i < size; i++ {
		m.words = append(m.words, new(big.Int))
	}
	return ptr
}

// Size is the number of allocated words
func (m *Memory) Size() int { return len(m.words) - 1 }

func (m *Memory) check(addr int) error {
	if addr <= 0 || addr >= len(m.words) {
		return fmt.Errorf("memory access at %d outside the %d allocated words", addr, m.Size())
	}
	return nil
}

func (m *Memory) Read(addr int) (*big.Int, error) {
	if err := m.check(addr); err != nil {
		return nil, err
	}
	return new(big.Int).Set(m.words[addr]), nil
}

func (m *Memory) Write(addr int, value *big.Int) error {
	if err := m.check(addr); err != nil {
		return err
	}
	m.words[addr] = new(big.Int).Set(value)
	return nil
}

// NewDynamicArray allocates a length header followed by length elements of width words
func (m *Memory) NewDynamicArray(length, width int) int {
	ptr := m.Alloc(1 + length*width)
	m.words[ptr].SetInt64(int64(length))
	return ptr
}

func (m *Memory) LengthDyn(ptr int) (int, error) {
	v, err := m.Read(ptr)
	if err != nil {
		return 0, err
	}
	return toAddr(v)
}

// IndexDyn returns the address of element index, failing past the stored length
func (m *Memory) IndexDyn(ptr, index, width int) (int, error) {
	length, err := m.LengthDyn(ptr)
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= length {
		return 0, fmt.Errorf("index %d out of range for dynamic array of length %d at %d", index, length, ptr)
	}
	return ptr + 1 + index*width, nil
}

// GetOrCreateID reads the indirection stored at loc, allocating size words behind it
// when loc still holds zero
func (m *Memory) GetOrCreateID(loc, size int) (int, error) {
	v, err := m.Read(loc)
	if err != nil {
		return 0, err
	}
	if v.Sign() != 0 {
		return toAddr(v)
	}
	ptr := m.Alloc(size)
	return ptr, m.Write(loc, big.NewInt(int64(ptr)))
}

// Store allocates a block holding values and returns its address
func (m *Memory) Store(values ...*big.Int) int {
	ptr := m.Alloc(len(values))
	for i, v := range values {
		m.words[ptr+i] = new(big.Int).Set(v)
	}
	return ptr
}

// StoreDynamic lays out a dynamic array whose elements are width words each
func (m *Memory) StoreDynamic(width int, words ...*big.Int) int {
	ptr := m.NewDynamicArray(len(words)/width, width)
	for i, v := range words {
		m.words[ptr+1+i] = new(big.Int).Set(v)
	}
	return ptr
}

// Load reads n consecutive words starting at ptr
func (m *Memory) Load(ptr, n int) ([]*big.Int, error) {
	out := make([]*big.Int, n)
	for i := range out {
		v, err := m.Read(ptr + i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// LoadDynamic returns the words of the dynamic array at ptr, excluding the length
func (m *Memory) LoadDynamic(ptr, width int) ([]*big.Int, error) {
	length, err := m.LengthDyn(ptr)
	if err != nil {
		return nil, err
	}
	return m.Load(ptr+1, length*width)
}

func toAddr(v *big.Int) (int, error) {
	if !v.IsInt64() || v.Int64() < 0 || v.Int64() > int64(^uint32(0)) {
		return 0, fmt.Errorf("%s is not a valid address", v)
	}
	return int(v.Int64()), nil
}
