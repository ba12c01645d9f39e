// Package bench runs benchmark plans end to end.
//
// A run has four phases, and only the last one is timed:
//
//  1. Load every dataset from disk.
//  2. Open the selected back ends and copy the datasets into the SQL ones.
//  3. Register one operation per step, with one implementation per back end.
//  4. Per step: run every implementation once and check it against the
//     first, then time all of them.
//
// Configuration and registry errors abort the run. An implementation that
// fails is recorded in the report and the run goes on.
package bench
