// Package delegate keeps sets of listeners without owning them.
//
// Service objects hand their UI-facing listeners to a Helper through Refs built
// with Weak. The helper never extends a listener's lifetime; listeners that were
// released or collected are skipped and dropped on the next NotifyAll.
package delegate
