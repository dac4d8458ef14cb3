package models

// Skip represents a skip interval with a start and end time in seconds
type Skip struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Valid reports whether the interval has a positive end after its start
func (s *Skip) Valid() bool {
	return s != nil && s.End > 0 && s.End > s.Start
}
