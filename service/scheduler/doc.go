// Package scheduler defines the contract between ready-task producers and
// the worker fleet, plus the configuration shared by the naive and tree
// implementations in the subpackages.
package scheduler
