// Package userapi wraps the portal's user-management endpoints and the
// list helpers the admin screens build on.
//
// Every call goes through a [pipeline.Pipeline], so an expired access token
// is refreshed transparently. Failures are *pipeline.Error values.
//
// [Status], [Filter] and [Paginate] are pure functions over []User.
package userapi
