// Package spcodec encodes the outlier set produced by a predictor.
//
// Two layouts are provided. Vector writes (index, value) pairs and suits
// scattered outliers. CSR groups outliers by row of a square view of the
// array and delta-encodes columns, which is smaller when outliers cluster.
// Both store values as exact float64 bits and validate every decoded index
// against the element count.
package spcodec
