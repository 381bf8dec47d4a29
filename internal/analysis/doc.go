// Package analysis characterizes how a run has separated its materials.
//
//   - [RadialProfile]: per-material mean and spread of the distance from
//     the rotation axis
//   - [StratificationIndex]: weighted correlation between rest density and
//     mean radius
//   - [ShellFractions]: material mass fractions in concentric shells around
//     the axis
//
// # Stratification
//
// Under rotation denser material should migrate outwards, which shows up as
// a positive index:
//
//	prof := analysis.RadialProfile(ps, len(mats), axis, centre)
//	if analysis.StratificationIndex(prof, mats) > 0 {
//	    // denser material sits further out
//	}
package analysis
