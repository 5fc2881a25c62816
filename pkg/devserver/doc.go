// Package devserver supervises the framework's own dev server in
// development mode.
//
// The optional install command runs first. The dev server is then started
// with PORT set and its port is polled with exponential backoff; Ready is
// closed once it accepts connections. Output of both commands is copied to
// the console with a colored prefix.
package devserver
