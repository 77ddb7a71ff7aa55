package types

// Amount is a monetary value in base units. The access fee and all
// redemption payments are expressed in base units; the core never
// deals in fractional denominations.
type Amount uint64
