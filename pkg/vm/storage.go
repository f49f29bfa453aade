package vm

import (
	"math/big"
)

// Storage is the persistent region: a sparse word map where unset words read as zero.
// A dynamic array named n keeps its length at n<<128 and its elements right after it.
type Storage struct {
	words map[string]*big.Int
}

func NewStorage() *Storage { return &Storage{words: make(map[string]*big.Int)} }

func (s *Storage) Read(loc *big.Int) *big.Int {
	if v, ok := s.words[loc.String()]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (s *Storage) Write(loc, value *big.Int) {
	s.words[loc.String()] = new(big.Int).Set(value)
}

// Len counts the words that were ever written
func (s *Storage) Len() int { return len(s.words) }

func dynBase(name *big.Int) *big.Int { return new(big.Int).Lsh(name, 128) }

// DynIndex is the location of element index of the dynamic array name
func (s *Storage) DynIndex(name, index *big.Int, width int) *big.Int {
	loc := new(big.Int).Mul(index, big.NewInt(int64(width)))
	loc.Add(loc, dynBase(name))
	return loc.Add(loc, big.NewInt(1))
}

func (s *Storage) DynLength(name *big.Int) *big.Int { return s.Read(dynBase(name)) }

// WriteWords stores words at consecutive locations from loc
func (s *Storage) WriteWords(loc int64, words ...*big.Int) {
	for i, w := range words {
		s.Write(big.NewInt(loc+int64(i)), w)
	}
}

// WriteDynamic stores the dynamic array name holding elements of width words each
func (s *Storage) WriteDynamic(name int64, width int, words ...*big.Int) {
	n := big.NewInt(name)
	s.Write(dynBase(n), big.NewInt(int64(len(words)/width)))
	for i, w := range words {
		loc := s.DynIndex(n, big.NewInt(int64(i/width)), width)
		s.Write(loc.Add(loc, big.NewInt(int64(i%width))), w)
	}
}
