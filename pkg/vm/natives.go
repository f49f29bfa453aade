package vm

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
)

type native func(m *Machine, args []*big.Int) (*big.Int, error)

var (
	// FieldPrime is the modulus of felt252 arithmetic, 2^251 + 17*2^192 + 1
	FieldPrime = func() *big.Int {
		p := new(big.Int).Lsh(big.NewInt(1), 251)
		p.Add(p, new(big.Int).Lsh(big.NewInt(17), 192))
		return p.Add(p, big.NewInt(1))
	}()
	mask128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	intConversionRe = regexp.MustCompile(`^warp_(u?int)(\d+)_to_(u?int)(\d+)$`)
	bytesToFixedRe  = regexp.MustCompile(`^wm_bytes_to_fixed(\d+)$`)
)

var natives = map[string]struct {
	arity int
	fn    native
}{
	"u256_from_felts": {2, func(_ *Machine, a []*big.Int) (*big.Int, error) {
		return new(big.Int).Add(a[0], new(big.Int).Lsh(a[1], 128)), nil
	}},
	"u256_low": {1, func(_ *Machine, a []*big.Int) (*big.Int, error) {
		return new(big.Int).And(a[0], mask128), nil
	}},
	"u256_high": {1, func(_ *Machine, a []*big.Int) (*big.Int, error) {
		return new(big.Int).Rsh(a[0], 128), nil
	}},
	"felt_to_uint256": {1, func(_ *Machine, a []*big.Int) (*big.Int, error) {
		return new(big.Int).Set(a[0]), nil
	}},
	"unsafe_contract_address_from_u256": {1, func(_ *Machine, a []*big.Int) (*big.Int, error) {
		return new(big.Int).Mod(a[0], FieldPrime), nil
	}},
	"warp_bytes_widen":     {2, shiftLeft},
	"warp_bytes_widen_256": {2, shiftLeft},
	"warp_bytes_narrow": {2, func(_ *Machine, a []*big.Int) (*big.Int, error) {
		bits, err := toAddr(a[1])
		if err != nil {
			return nil, err
		}
		return new(big.Int).Rsh(a[0], uint(bits)), nil
	}},
}

func shiftLeft(_ *Machine, a []*big.Int) (*big.Int, error) {
	bits, err := toAddr(a[1])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Lsh(a[0], uint(bits)), nil
}

// lookupNative resolves a library function by name, including the parameterized families
func lookupNative(name string) (native, int, bool) {
	if n, ok := natives[name]; ok {
		return n.fn, n.arity, true
	}
	if m := intConversionRe.FindStringSubmatch(name); m != nil {
		from, _ := strconv.Atoi(m[2])
		to, _ := strconv.Atoi(m[4])
		return intConversion(m[1] == "int", from, to), 1, true
	}
	if m := bytesToFixedRe.FindStringSubmatch(name); m != nil {
		size, _ := strconv.Atoi(m[1])
		return bytesToFixed(size), 1, true
	}
	return nil, 0, false
}

// intConversion reinterprets a two's complement value of fromBits, sign extending it
// when the source is signed, and truncates the result to toBits
func intConversion(signed bool, fromBits, toBits int) native {
	return func(_ *Machine, a []*big.Int) (*big.Int, error) {
		x := new(big.Int).Set(a[0])
		limit := new(big.Int).Lsh(big.NewInt(1), uint(fromBits))
		if x.Sign() < 0 || x.Cmp(limit) >= 0 {
			return nil, fmt.Errorf("%s does not fit in %d bits", x, fromBits)
		}
		if signed && x.Bit(fromBits-1) == 1 {
			x.Sub(x, limit)
		}
		return x.Mod(x, new(big.Int).Lsh(big.NewInt(1), uint(toBits))), nil
	}
}

// bytesToFixed packs the first size bytes of a scratch byte array big-endian,
// padding short arrays with zero bytes on the right
func bytesToFixed(size int) native {
	return func(m *Machine, a []*big.Int) (*big.Int, error) {
		ptr, err := toAddr(a[0])
		if err != nil {
			return nil, err
		}
		words, err := m.Memory.LoadDynamic(ptr, 1)
		if err != nil {
			return nil, err
		}
		out := new(big.Int)
		for i := 0; i < size; i++ {
			out.Lsh(out, 8)
			if i < len(words) {
				out.Or(out, new(big.Int).And(words[i], big.NewInt(0xff)))
			}
		}
		return out, nil
	}
}
