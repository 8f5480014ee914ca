package hll

// HashSpace exposes 2^32 for large-range tests.
var HashSpace = hashSpace

// LargeRangeCeiling exposes the saturation value of the large-range transform.
var LargeRangeCeiling = largeRangeCeiling

// SetRegisters overwrites the register bank for boundary tests.
func (e *Estimator) SetRegisters(values []uint8) {
	copy(e.regs.values, values)
}
