/*
coreburn — CPU burn-in and stability validation tool in Go
Copyright (C) 2025  Pepijn van der Stap <coreburn@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package workload

import (
	"fmt"
	"math"
	"sort"

	"github.com/zeebo/xxh3"
)

// Catalog ids. Ids 1-8 are real stress kernels; FaultInjectID is reserved
// for self-testing the harness and is guaranteed to eventually fail.
const (
	IntegerALUID     = 1
	FloatFMAID       = 2
	MatrixMultiplyID = 3
	PrimeSieveID     = 4
	HashChainID      = 5
	MemoryCopyID     = 6
	SortID           = 7
	TranscendID      = 8
	FaultInjectID    = 9
)

// Sizing for one cycle of each kernel. Each cycle is short enough that
// cancellation checks at cycle boundaries stay responsive.
const (
	integerALUIterations = 1 << 18
	floatFMAIterations   = 1 << 17
	matrixDim            = 64
	sieveLimit           = 1 << 16
	sievePrimeCount      = 6542 // pi(65536), fixed reference
	hashChainRounds      = 256
	hashBlockSize        = 4096
	memoryCopyBytes      = 1 << 20
	sortElements         = 1 << 14
	transcendIterations  = 1 << 15
	faultInjectAfter     = 3 // verify fails from this cycle on
)

func init() {
	Register(IntegerALUID, "int-alu", func() Workload { return &integerALU{} })
	Register(FloatFMAID, "float-fma", func() Workload { return &floatFMA{} })
	Register(MatrixMultiplyID, "matmul", func() Workload { return newMatrixMultiply() })
	Register(PrimeSieveID, "sieve", func() Workload { return &primeSieve{} })
	Register(HashChainID, "hash-chain", func() Workload { return &hashChain{} })
	Register(MemoryCopyID, "mem-copy", func() Workload { return newMemoryCopy() })
	Register(SortID, "sort", func() Workload { return &sortStress{} })
	Register(TranscendID, "transcend", func() Workload { return &transcend{} })
	Register(FaultInjectID, "fault-inject", func() Workload { return &faultInject{} })
}

// The real kernels all follow the same detection pattern: Run executes the
// computation twice from identical inputs and Verify compares the two
// results. On stable hardware both passes are bit-identical; a divergence
// is exactly the signal a burn-in run is looking for.

// integerALU hammers the integer pipeline with a xorshift/multiply mix.
type integerALU struct {
	pass1, pass2 uint64
	cycle        uint64
}

func (w *integerALU) Name() string { return "int-alu" }

func (w *integerALU) Run() error {
	seed := 0x9E3779B97F4A7C15 ^ w.cycle
	w.pass1 = integerMixLoop(seed)
	w.pass2 = integerMixLoop(seed)
	w.cycle++
	return nil
}

func (w *integerALU) Verify() error {
	if w.pass1 != w.pass2 {
		return fmt.Errorf("%w: int-alu pass mismatch %#x != %#x", ErrValidation, w.pass1, w.pass2)
	}
	return nil
}

func integerMixLoop(seed uint64) uint64 {
	x := seed | 1
	var acc uint64
	for i := 0; i < integerALUIterations; i++ {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		acc += x * 0x2545F4914F6CDD1D
	}
	return acc
}

// floatFMA exercises the FP multiply-add units.
type floatFMA struct {
	pass1, pass2 uint64 // math.Float64bits of the accumulators
	cycle        uint64
}

func (w *floatFMA) Name() string { return "float-fma" }

func (w *floatFMA) Run() error {
	seed := 1.0 + float64(w.cycle%1024)/1024.0
	w.pass1 = math.Float64bits(fmaLoop(seed))
	w.pass2 = math.Float64bits(fmaLoop(seed))
	w.cycle++
	return nil
}

func (w *floatFMA) Verify() error {
	if w.pass1 != w.pass2 {
		return fmt.Errorf("%w: float-fma pass mismatch %#x != %#x", ErrValidation, w.pass1, w.pass2)
	}
	return nil
}

func fmaLoop(seed float64) float64 {
	a, b, acc := seed, 1.0000001, 0.0
	for i := 0; i < floatFMAIterations; i++ {
		acc = acc*b + a
		a = a*1.0000003 + 1e-9
		if acc > 1e12 {
			acc *= 1e-12
		}
	}
	return acc
}

// matrixMultiply keeps its operands allocated across cycles and multiplies
// them twice, comparing xxh3 digests of the products.
type matrixMultiply struct {
	a, b, c1, c2 []float64
	digest1      uint64
	digest2      uint64
	cycle        uint64
}

func newMatrixMultiply() *matrixMultiply {
	n := matrixDim * matrixDim
	m := &matrixMultiply{
		a:  make([]float64, n),
		b:  make([]float64, n),
		c1: make([]float64, n),
		c2: make([]float64, n),
	}
	for i := range m.a {
		m.a[i] = float64(i%97) * 0.5
		m.b[i] = float64(i%89) * 0.25
	}
	return m
}

func (w *matrixMultiply) Name() string { return "matmul" }

func (w *matrixMultiply) Run() error {
	// Perturb one input element per cycle so consecutive cycles do not
	// trivially hit identical cache state.
	w.a[int(w.cycle)%len(w.a)] += 1e-3
	matmul(w.a, w.b, w.c1)
	matmul(w.a, w.b, w.c2)
	w.digest1 = digestFloats(w.c1)
	w.digest2 = digestFloats(w.c2)
	w.cycle++
	return nil
}

func (w *matrixMultiply) Verify() error {
	if w.digest1 != w.digest2 {
		return fmt.Errorf("%w: matmul product digest mismatch %#x != %#x", ErrValidation, w.digest1, w.digest2)
	}
	return nil
}

func matmul(a, b, c []float64) {
	n := matrixDim
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += a[i*n+k] * b[k*n+j]
			}
			c[i*n+j] = sum
		}
	}
}

func digestFloats(v []float64) uint64 {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		bits := math.Float64bits(f)
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(bits >> (8 * b))
		}
	}
	return xxh3.Hash(buf)
}

// primeSieve counts primes below a fixed bound; the count is checked
// against a precomputed reference, so a single pass suffices.
type primeSieve struct {
	count int
}

func (w *primeSieve) Name() string { return "sieve" }

func (w *primeSieve) Run() error {
	composite := make([]bool, sieveLimit)
	count := 0
	for i := 2; i < sieveLimit; i++ {
		if composite[i] {
			continue
		}
		count++
		for j := i * i; j < sieveLimit; j += i {
			composite[j] = true
		}
	}
	w.count = count
	return nil
}

func (w *primeSieve) Verify() error {
	if w.count != sievePrimeCount {
		return fmt.Errorf("%w: sieve counted %d primes below %d, want %d", ErrValidation, w.count, sieveLimit, sievePrimeCount)
	}
	return nil
}

// hashChain folds xxh3 over a block repeatedly, feeding each digest back
// into the block. Two chains from the same start must agree.
type hashChain struct {
	block1, block2 []byte
	digest1        uint64
	digest2        uint64
	cycle          uint64
}

func (w *hashChain) Name() string { return "hash-chain" }

func (w *hashChain) Run() error {
	if w.block1 == nil {
		w.block1 = make([]byte, hashBlockSize)
		w.block2 = make([]byte, hashBlockSize)
	}
	for i := range w.block1 {
		w.block1[i] = byte(uint64(i) + w.cycle)
	}
	copy(w.block2, w.block1)
	w.digest1 = chain(w.block1)
	w.digest2 = chain(w.block2)
	w.cycle++
	return nil
}

func (w *hashChain) Verify() error {
	if w.digest1 != w.digest2 {
		return fmt.Errorf("%w: hash-chain digest mismatch %#x != %#x", ErrValidation, w.digest1, w.digest2)
	}
	return nil
}

func chain(block []byte) uint64 {
	var d uint64
	for r := 0; r < hashChainRounds; r++ {
		d = xxh3.Hash(block)
		for i := 0; i < 8; i++ {
			block[i] ^= byte(d >> (8 * i))
		}
	}
	return d
}

// memoryCopy shuffles a large buffer through copies and verifies the
// content survived via digest comparison, stressing load/store paths.
type memoryCopy struct {
	src, dst, back []byte
	want, got      uint64
	cycle          uint64
}

func newMemoryCopy() *memoryCopy {
	return &memoryCopy{
		src:  make([]byte, memoryCopyBytes),
		dst:  make([]byte, memoryCopyBytes),
		back: make([]byte, memoryCopyBytes),
	}
}

func (w *memoryCopy) Name() string { return "mem-copy" }

func (w *memoryCopy) Run() error {
	for i := range w.src {
		w.src[i] = byte(uint64(i)*31 + w.cycle)
	}
	w.want = xxh3.Hash(w.src)
	copy(w.dst, w.src)
	copy(w.back, w.dst)
	w.got = xxh3.Hash(w.back)
	w.cycle++
	return nil
}

func (w *memoryCopy) Verify() error {
	if w.want != w.got {
		return fmt.Errorf("%w: mem-copy digest mismatch after round trip %#x != %#x", ErrValidation, w.want, w.got)
	}
	return nil
}

// sortStress sorts a deterministic pseudo-random slice and checks both
// ordering and element conservation (sum is order-independent).
type sortStress struct {
	data    []uint32
	wantSum uint64
	cycle   uint64
}

func (w *sortStress) Name() string { return "sort" }

func (w *sortStress) Run() error {
	if w.data == nil {
		w.data = make([]uint32, sortElements)
	}
	x := uint32(0x6C078965) + uint32(w.cycle)
	var sum uint64
	for i := range w.data {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		w.data[i] = x
		sum += uint64(x)
	}
	w.wantSum = sum
	sort.Slice(w.data, func(i, j int) bool { return w.data[i] < w.data[j] })
	w.cycle++
	return nil
}

func (w *sortStress) Verify() error {
	var sum uint64
	for i, v := range w.data {
		if i > 0 && w.data[i-1] > v {
			return fmt.Errorf("%w: sort order violated at index %d", ErrValidation, i)
		}
		sum += uint64(v)
	}
	if sum != w.wantSum {
		return fmt.Errorf("%w: sort element sum changed %d != %d", ErrValidation, sum, w.wantSum)
	}
	return nil
}

// transcend runs a sin/cos/sqrt/exp mix twice and compares accumulator
// bits. libm results are deterministic for identical inputs on one CPU.
type transcend struct {
	pass1, pass2 uint64
	cycle        uint64
}

func (w *transcend) Name() string { return "transcend" }

func (w *transcend) Run() error {
	seed := 0.5 + float64(w.cycle%512)/512.0
	w.pass1 = math.Float64bits(transcendLoop(seed))
	w.pass2 = math.Float64bits(transcendLoop(seed))
	w.cycle++
	return nil
}

func (w *transcend) Verify() error {
	if w.pass1 != w.pass2 {
		return fmt.Errorf("%w: transcend pass mismatch %#x != %#x", ErrValidation, w.pass1, w.pass2)
	}
	return nil
}

func transcendLoop(seed float64) float64 {
	x, acc := seed, 0.0
	for i := 0; i < transcendIterations; i++ {
		acc += math.Sin(x)*math.Cos(x) + math.Sqrt(x+1)
		x = math.Mod(x+math.Exp(-x), 4.0) + 0.1
	}
	return acc
}

// faultInject is the reserved self-test workload: it verifies cleanly for
// its first cycles and then fails every verify, so the harness's failure
// accounting and halt behavior can be exercised end to end.
type faultInject struct {
	runs int
}

func (w *faultInject) Name() string { return "fault-inject" }

func (w *faultInject) Run() error {
	w.runs++
	return nil
}

func (w *faultInject) Verify() error {
	if w.runs > faultInjectAfter {
		return fmt.Errorf("%w: injected fault on cycle %d", ErrValidation, w.runs)
	}
	return nil
}
