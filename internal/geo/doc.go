// Package geo turns classified permit records into map output: GeoJSON
// feature collections, point shapefiles, and EWKB points for PostGIS.
package geo
