// Package remote calls the analytics API.
//
// Every read endpoint of the API is exposed as an Operation and registered in
// a Registry under its "service.operation" name, for example
// "sales.getDailySales". Failures are classified with the cache package error
// constructors: transport failures, non-success responses and malformed bodies
// are distinct so callers can choose whether stale data may be served.
package remote
