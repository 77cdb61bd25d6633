// Package physics provides the pure functions behind the charging
// simulation: the DC fast-charge power curve, thermal derating, and the
// connector temperature model. All functions are deterministic given
// their inputs so simulation runs are reproducible in tests.
package physics
