//go:build !geos

package core

// GEOSAvailable reports whether this binary was built with GEOS support.
const GEOSAvailable = false

func geosBackend() (GeometryOps, error) { return nil, ErrGEOSUnavailable }
