package infer

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible toy-simulation run.
// Two runs with the same SimulationKey and identical model configuration
// MUST produce bit-for-bit identical toy datasets.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemToyMC is the RNG subsystem for toy dataset generation.
	// Uses the master seed directly so --seed reproduces a single toy.
	SubsystemToyMC = "toymc"
)

// SubsystemToy returns the subsystem name for toy N in a calibration batch.
// Each toy gets its own stream so results do not depend on how toys are
// spread across workers.
func SubsystemToy(index int) string {
	return fmt.Sprintf("toy_%d", index)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula:
//   - For SubsystemToyMC: uses the master seed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Must be called from a single goroutine;
// calibration workers each hold their own PartitionedRNG.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	var derivedSeed int64
	if name == SubsystemToyMC {
		derivedSeed = int64(p.key)
	} else {
		derivedSeed = int64(p.key) ^ fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// ToyRNG returns a fresh RNG for toy `index` of a batch seeded with `seed`:
// the stream a PartitionedRNG on the same seed derives for that toy's
// subsystem. Deterministic in (seed, index) and independent of worker
// scheduling; lets a single toy from a batch be replayed standalone.
func ToyRNG(seed int64, index int) *rand.Rand {
	return NewPartitionedRNG(NewSimulationKey(seed)).ForSubsystem(SubsystemToy(index))
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
