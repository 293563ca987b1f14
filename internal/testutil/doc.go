// Package testutil contains helpers used across tests to reduce boilerplate
// when driving collectors and constructing activity records. FakeSource
// plays the host: it delivers lifecycle notifications synchronously to its
// subscribers. ActivityBuilder assembles activities without a store. These
// helpers are not intended for production usage.
package testutil
