// Package memstore keeps every store in process memory. It backs the
// service tests and single instance development runs without MongoDB or
// Redis. Values are copied on the way in and out.
package memstore
