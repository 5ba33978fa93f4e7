// -- internal/safety/emergency.go --
package safety

import "sync/atomic"

// The emergency stop is process-wide and independent of any Policy instance:
// tripping it halts every dispatch and turn until explicitly reset.
var emergencyStopped atomic.Bool

// TriggerEmergencyStop halts all further automation.
func TriggerEmergencyStop() { emergencyStopped.Store(true) }

// IsEmergencyStopped reports whether the stop flag is set.
func IsEmergencyStopped() bool { return emergencyStopped.Load() }

// ResetEmergencyStop clears the stop flag for a new run.
func ResetEmergencyStop() { emergencyStopped.Store(false) }
