package biometric

// Candidate pairs an enrolled descriptor with the key of the record it
// belongs to.
type Candidate struct {
	Key        string
	Descriptor Descriptor
}

// Match holds the winning candidate of an identification scan.
type Match struct {
	Key      string
	Distance float64
}

// BestMatch scans every candidate and returns the one with the smallest
// distance to the probe, provided that distance clears the threshold.
// Arg-min selection (rather than first hit in scan order) keeps the result
// independent of enrollment order and rewards the closer face.
func BestMatch(probe Descriptor, candidates []Candidate, threshold float64) (Match, bool, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	best := Match{Distance: -1}
	for _, c := range candidates {
		d, err := Distance(probe, c.Descriptor)
		if err != nil {
			return Match{}, false, err
		}
		if d > threshold {
			continue
		}
		if best.Distance < 0 || d < best.Distance {
			best = Match{Key: c.Key, Distance: d}
		}
	}
	if best.Distance < 0 {
		return Match{}, false, nil
	}
	return best, true, nil
}
