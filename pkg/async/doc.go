// Package async runs background work with panic recovery.
//
// A Group starts tasks with SafeGo and lets shutdown wait for them with
// Wait. The ops API uses it to run billing triggered over HTTP after the
// request has been answered.
package async
