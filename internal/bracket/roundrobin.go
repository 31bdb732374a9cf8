package bracket

// Fixture is one round robin pairing of roster indices.
type Fixture struct {
	Round int
	A     int
	B     int
}

// RoundRobin schedules every pair of n entries exactly once using the circle
// method: entry 0 stays put while the others rotate, giving n-1 rounds (n
// rounds when n is odd, with one entry resting each round).
func RoundRobin(n int) []Fixture {
	if n < 2 {
		return nil
	}

	const bye = -1
	ring := make([]int, 0, n+1)
	for i := 0; i < n; i++ {
		ring = append(ring, i)
	}
	if n%2 == 1 {
		ring = append(ring, bye)
	}

	size := len(ring)
	fixtures := make([]Fixture, 0, n*(n-1)/2)
	for round := 1; round < size; round++ {
		for i := 0; i < size/2; i++ {
			a, b := ring[i], ring[size-1-i]
			if a == bye || b == bye {
				continue
			}
			if a > b {
				a, b = b, a
			}
			fixtures = append(fixtures, Fixture{Round: round, A: a, B: b})
		}
		// rotate everything but the first entry one place clockwise
		last := ring[size-1]
		copy(ring[2:], ring[1:size-1])
		ring[1] = last
	}
	return fixtures
}
