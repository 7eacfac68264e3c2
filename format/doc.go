// Package format defines the enumerations and plain data types shared by every
// szpipe stage: array shapes, element types, outlier sets and the strategy
// selectors recorded in artifact headers.
package format
