// Package config holds the compression Context: array shape, error bound and
// the strategy selected for each pipeline stage.
//
// A Context is built with NewContext and functional options, or decoded from
// YAML with Parse:
//
//	ctx, err := config.NewContext(format.Shape3D(256, 256, 64),
//		config.WithErrorBound(1e-3, format.BoundRel),
//		config.WithPredictor(format.PredictorSpline3),
//	)
package config
