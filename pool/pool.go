package pool

import "runtime"

// Parallelism bounds a worker pool as a multiple of the available cores.
type Parallelism struct {
	Multiplier int
	Floor      int
	Ceiling    int
}

var (
	// Files suits mod distribution files: few, often large, one host.
	Files = Parallelism{Multiplier: 4, Floor: 8, Ceiling: 32}

	// Assets suits the Mojang object store: many small objects on a CDN.
	Assets = Parallelism{Multiplier: 8, Floor: 16, Ceiling: 128}
)

// Size returns the number of workers for items units of work.
func (p Parallelism) Size(items int) int {
	return p.size(items, runtime.GOMAXPROCS(0))
}

func (p Parallelism) size(items, cores int) int {
	if items <= 0 {
		return 0
	}
	k := p.Multiplier
	if k <= 0 {
		k = 1
	}
	n := cores * k
	if p.Floor > 0 && n < p.Floor {
		n = p.Floor
	}
	if p.Ceiling > 0 && n > p.Ceiling {
		n = p.Ceiling
	}
	if n > items {
		n = items
	}
	if n < 1 {
		n = 1
	}
	return n
}
